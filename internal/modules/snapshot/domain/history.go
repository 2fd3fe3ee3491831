package domain

import (
	"math"
	"sort"
)

// Frame holds every snapshot sampled at one instant, keyed by consumer key.
type Frame map[string]Snapshot

// Level is the rounded mean battery level of the frame.
func (f Frame) Level() (int, bool) {
	if len(f) == 0 {
		return 0, false
	}
	total := 0.0
	for _, s := range f {
		total += float64(s.BatteryLevel)
	}
	return int(math.Round(total / float64(len(f)))), true
}

func (f Frame) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// First returns the entry with the lowest key so callers that only need
// frame-wide fields get a stable answer.
func (f Frame) First() (Snapshot, bool) {
	if len(f) == 0 {
		return Snapshot{}, false
	}
	return f[f.Keys()[0]], true
}

// History maps a sampling timestamp to the frame captured at that instant.
type History map[int64]Frame

// NewHistory groups valid snapshots by timestamp and returns how many were
// dropped as malformed. A later snapshot for the same consumer and instant
// replaces the earlier one.
func NewHistory(snapshots []Snapshot) (History, int) {
	history := History{}
	dropped := 0
	for _, s := range snapshots {
		if err := s.Validate(); err != nil {
			dropped++
			continue
		}
		history.Add(s)
	}
	return history, dropped
}

func (h History) Add(s Snapshot) {
	frame, ok := h[s.Timestamp]
	if !ok {
		frame = Frame{}
		h[s.Timestamp] = frame
	}
	frame[s.Key()] = s
}

func (h History) Timestamps() []int64 {
	out := make([]int64, 0, len(h))
	for ts := range h {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LatestZoneID returns the zone recorded with the newest snapshot, if any.
func (h History) LatestZoneID() string {
	timestamps := h.Timestamps()
	for i := len(timestamps) - 1; i >= 0; i-- {
		frame := h[timestamps[i]]
		for _, k := range frame.Keys() {
			if zone := frame[k].ZoneID; zone != "" {
				return zone
			}
		}
	}
	return ""
}
