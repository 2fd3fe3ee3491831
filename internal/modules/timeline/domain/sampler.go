package domain

import (
	"math"
	"sort"
	"time"

	snapshot "batteryusage/internal/modules/snapshot/domain"
)

const (
	forceAlignWindow  = 5 * time.Second
	rebootAlignWindow = 10 * time.Minute
)

// Sampler answers "what did the device look like at instant t" for any t,
// from raw frames where they exist and by interpolation elsewhere.
type Sampler struct {
	history snapshot.History
	times   []int64
	loc     *time.Location
	maxGap  int64
}

func NewSampler(history snapshot.History, loc *time.Location, maxGap time.Duration) *Sampler {
	if loc == nil {
		loc = time.Local
	}
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	return &Sampler{history: history, times: history.Timestamps(), loc: loc, maxGap: maxGap.Milliseconds()}
}

// Between lists raw sampling instants strictly inside (lower, upper).
func (s *Sampler) Between(lower, upper int64) []int64 {
	from := sort.Search(len(s.times), func(i int) bool { return s.times[i] > lower })
	to := sort.Search(len(s.times), func(i int) bool { return s.times[i] >= upper })
	if from >= to {
		return nil
	}
	out := make([]int64, to-from)
	copy(out, s.times[from:to])
	return out
}

func (s *Sampler) Raw(ts int64) (snapshot.Frame, bool) {
	frame, ok := s.history[ts]
	return frame, ok
}

func (s *Sampler) Breakpoint(ts int64) Breakpoint {
	return Breakpoint{Timestamp: ts, Level: s.LevelAt(ts)}
}

func (s *Sampler) LevelAt(ts int64) *int {
	level, ok := s.FrameAt(ts).Level()
	if !ok {
		return nil
	}
	return &level
}

// FrameAt returns the frame at ts, or an empty frame when the state at ts
// cannot be known: before the first sample, after the last one, inside a gap
// longer than the max gap, or across a reboot far from the next sample.
func (s *Sampler) FrameAt(ts int64) snapshot.Frame {
	if frame, ok := s.history[ts]; ok {
		return frame
	}
	idx := sort.Search(len(s.times), func(i int) bool { return s.times[i] >= ts })
	if idx == len(s.times) {
		return snapshot.Frame{}
	}
	upperTs := s.times[idx]
	upper := s.history[upperTs]
	if upperTs-ts < forceAlignWindow.Milliseconds() {
		return upper
	}
	if idx == 0 {
		return snapshot.Frame{}
	}
	lowerTs := s.times[idx-1]
	if upperTs-lowerTs > s.maxGap {
		return snapshot.Frame{}
	}
	if first, ok := upper.First(); ok && first.BootTimestamp > 0 && lowerTs < first.BootedAt() && !s.isMidnight(ts) {
		if upperTs-ts < rebootAlignWindow.Milliseconds() {
			return upper
		}
		return snapshot.Frame{}
	}
	return interpolateFrame(ts, lowerTs, upperTs, s.history[lowerTs], upper)
}

func (s *Sampler) isMidnight(ts int64) bool {
	t := time.UnixMilli(ts).In(s.loc)
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func interpolateFrame(ts, lowerTs, upperTs int64, lower, upper snapshot.Frame) snapshot.Frame {
	ratio := float64(ts-lowerTs) / float64(upperTs-lowerTs)
	out := make(snapshot.Frame, len(upper))
	for key, u := range upper {
		l, ok := lower[key]
		// A counter that went backwards was reset; the upper sample is the
		// only trustworthy value.
		if ok && (l.ForegroundMs > u.ForegroundMs || l.BackgroundMs > u.BackgroundMs) {
			out[key] = u
			continue
		}
		out[key] = interpolate(ts, ratio, l, ok, u)
	}
	return out
}

// interpolate scales each field between lower and upper; a consumer missing
// from the lower frame uses a zero baseline and keeps the upper level.
func interpolate(ts int64, ratio float64, lower snapshot.Snapshot, hasLower bool, upper snapshot.Snapshot) snapshot.Snapshot {
	var base snapshot.Snapshot
	if hasLower {
		base = lower
	}
	out := upper
	out.Timestamp = ts
	out.PowerMah = lerp(base.PowerMah, upper.PowerMah, ratio)
	out.ForegroundMs = lerpMs(base.ForegroundMs, upper.ForegroundMs, ratio)
	out.ForegroundServiceMs = lerpMs(base.ForegroundServiceMs, upper.ForegroundServiceMs, ratio)
	out.BackgroundMs = lerpMs(base.BackgroundMs, upper.BackgroundMs, ratio)
	if hasLower {
		out.BatteryLevel = int(math.Round(lerp(float64(lower.BatteryLevel), float64(upper.BatteryLevel), ratio)))
	}
	return out
}

func lerp(lower, upper, ratio float64) float64 {
	return lower + ratio*(upper-lower)
}

func lerpMs(lower, upper int64, ratio float64) int64 {
	return int64(math.Round(lerp(float64(lower), float64(upper), ratio)))
}
