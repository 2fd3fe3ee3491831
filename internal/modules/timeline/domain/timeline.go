package domain

import (
	"fmt"
	"time"
)

// All selects the whole range on either axis of a period index.
const All = -1

type Breakpoint struct {
	Timestamp int64 `json:"timestamp"`
	// Level is nil when the battery level at this instant is unknown.
	Level *int `json:"level"`
}

// Timeline holds daily boundaries and, per day, the even-hour boundaries
// inside it. Hourly[i] starts at Daily[i] and ends at Daily[i+1].
type Timeline struct {
	Daily  []Breakpoint   `json:"daily"`
	Hourly [][]Breakpoint `json:"hourly"`
}

func (t Timeline) Days() int {
	return len(t.Hourly)
}

// Hours is the number of hourly periods in a day.
func (t Timeline) Hours(day int) int {
	if day < 0 || day >= len(t.Hourly) {
		return 0
	}
	return len(t.Hourly[day]) - 1
}

func (t Timeline) Start() int64 {
	if len(t.Daily) == 0 {
		return 0
	}
	return t.Daily[0].Timestamp
}

func (t Timeline) End() int64 {
	if len(t.Daily) == 0 {
		return 0
	}
	return t.Daily[len(t.Daily)-1].Timestamp
}

// PeriodBounds resolves a (day, hour) index pair to its boundaries. Either
// index may be All; an hour of a whole-range day is not addressable.
func (t Timeline) PeriodBounds(day, hour int) (Breakpoint, Breakpoint, bool) {
	switch {
	case len(t.Daily) < 2:
		return Breakpoint{}, Breakpoint{}, false
	case day == All && hour == All:
		return t.Daily[0], t.Daily[len(t.Daily)-1], true
	case day < 0 || day >= t.Days():
		return Breakpoint{}, Breakpoint{}, false
	case hour == All:
		return t.Daily[day], t.Daily[day+1], true
	case hour < 0 || hour >= t.Hours(day):
		return Breakpoint{}, Breakpoint{}, false
	default:
		return t.Hourly[day][hour], t.Hourly[day][hour+1], true
	}
}

// PeriodLabel renders a period index for display, e.g. "Mon, Mar 4 14:00-16:00".
func (t Timeline) PeriodLabel(day, hour int, loc *time.Location) string {
	lower, upper, ok := t.PeriodBounds(day, hour)
	if !ok {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	start := time.UnixMilli(lower.Timestamp).In(loc)
	end := time.UnixMilli(upper.Timestamp).In(loc)
	switch {
	case day == All:
		return fmt.Sprintf("%s - %s", start.Format("Mon, Jan 2 15:04"), end.Format("Mon, Jan 2 15:04"))
	case hour == All:
		return start.Format("Mon, Jan 2")
	default:
		return fmt.Sprintf("%s %s-%s", start.Format("Mon, Jan 2"), start.Format("15:04"), end.Format("15:04"))
	}
}

// Location picks the zone used for day and hour boundaries: an explicit
// location wins, then the zone recorded with the snapshots, then local time.
func Location(configured *time.Location, zoneID string) *time.Location {
	if configured != nil {
		return configured
	}
	if zoneID != "" {
		if loc, err := time.LoadLocation(zoneID); err == nil {
			return loc
		}
	}
	return time.Local
}
