package domain

import (
	"sort"

	timeline "batteryusage/internal/modules/timeline/domain"
)

// All selects the whole range on either axis of a PeriodKey.
const All = timeline.All

// PeriodKey addresses one period of a timeline. {d, h} is the h-th hourly
// period of day d, {d, All} is the whole day d and {All, All} is the whole
// range; {All, h} is never populated.
type PeriodKey struct {
	Day  int `json:"day"`
	Hour int `json:"hour"`
}

// IndexedUsageMap is built once per run and read-only afterwards.
type IndexedUsageMap struct {
	periods map[PeriodKey]DiffData
}

func newIndexedUsageMap() IndexedUsageMap {
	return IndexedUsageMap{periods: map[PeriodKey]DiffData{}}
}

func (m IndexedUsageMap) At(day, hour int) (DiffData, bool) {
	data, ok := m.periods[PeriodKey{Day: day, Hour: hour}]
	return data, ok
}

func (m IndexedUsageMap) Len() int {
	return len(m.periods)
}

// Keys returns every populated key, whole-range first, then by day and hour
// with each day's aggregate ahead of its hours.
func (m IndexedUsageMap) Keys() []PeriodKey {
	keys := make([]PeriodKey, 0, len(m.periods))
	for k := range m.periods {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Day != keys[j].Day {
			return keys[i].Day < keys[j].Day
		}
		return keys[i].Hour < keys[j].Hour
	})
	return keys
}

// Slot pairs a key with its data for serialisation.
type Slot struct {
	PeriodKey
	DiffData
}

func (m IndexedUsageMap) Slots() []Slot {
	keys := m.Keys()
	out := make([]Slot, 0, len(keys))
	for _, k := range keys {
		out = append(out, Slot{PeriodKey: k, DiffData: m.periods[k]})
	}
	return out
}
