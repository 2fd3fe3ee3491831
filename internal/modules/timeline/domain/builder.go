package domain

import (
	"fmt"
	"time"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	apperrors "batteryusage/internal/platform/errors"
)

const (
	// MinSpan is the shortest sampled range that can be bucketed.
	MinSpan       = time.Hour
	DefaultMaxGap = 24 * time.Hour

	hourStep = 2
)

type Builder struct {
	Location *time.Location
	// MaxGap bounds interpolation; boundaries inside a longer sampling gap
	// get an unknown level.
	MaxGap time.Duration
}

func NewBuilder(loc *time.Location, maxGap time.Duration) Builder {
	if loc == nil {
		loc = time.Local
	}
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	return Builder{Location: loc, MaxGap: maxGap}
}

func (b Builder) Sampler(history snapshot.History) *Sampler {
	return NewSampler(history, b.Location, b.MaxGap)
}

func (b Builder) Build(history snapshot.History) (Timeline, error) {
	times := history.Timestamps()
	if len(times) < 2 {
		return Timeline{}, fmt.Errorf("%w: %d distinct timestamps", apperrors.ErrInsufficientData, len(times))
	}
	first, last := times[0], times[len(times)-1]
	if span := time.Duration(last-first) * time.Millisecond; span < MinSpan {
		return Timeline{}, fmt.Errorf("%w: span %s is under %s", apperrors.ErrInsufficientData, span, MinSpan)
	}

	sampler := b.Sampler(history)
	days := DailyBoundaries(first, last, b.Location)
	out := Timeline{
		Daily:  make([]Breakpoint, 0, len(days)),
		Hourly: make([][]Breakpoint, 0, len(days)-1),
	}
	for _, ts := range days {
		out.Daily = append(out.Daily, sampler.Breakpoint(ts))
	}
	for i := 0; i+1 < len(days); i++ {
		hours := HourlyBoundaries(days[i], days[i+1], b.Location)
		row := make([]Breakpoint, 0, len(hours))
		for j, ts := range hours {
			switch j {
			case 0:
				row = append(row, out.Daily[i])
			case len(hours) - 1:
				row = append(row, out.Daily[i+1])
			default:
				row = append(row, sampler.Breakpoint(ts))
			}
		}
		out.Hourly = append(out.Hourly, row)
	}
	return out, nil
}

// DailyBoundaries returns start, every local midnight strictly inside
// (start, end), and end.
func DailyBoundaries(start, end int64, loc *time.Location) []int64 {
	out := []int64{start}
	t := time.UnixMilli(start).In(loc)
	for day := 1; ; day++ {
		next := time.Date(t.Year(), t.Month(), t.Day()+day, 0, 0, 0, 0, loc).UnixMilli()
		if next >= end {
			break
		}
		if next > out[len(out)-1] {
			out = append(out, next)
		}
	}
	return append(out, end)
}

// HourlyBoundaries returns start, every even local hour strictly inside
// (start, end), and end.
func HourlyBoundaries(start, end int64, loc *time.Location) []int64 {
	out := []int64{start}
	t := time.UnixMilli(start).In(loc)
	hour := t.Hour() - t.Hour()%hourStep + hourStep
	for ; ; hour += hourStep {
		next := time.Date(t.Year(), t.Month(), t.Day(), hour, 0, 0, 0, loc).UnixMilli()
		if next >= end {
			break
		}
		if next > out[len(out)-1] {
			out = append(out, next)
		}
	}
	return append(out, end)
}
