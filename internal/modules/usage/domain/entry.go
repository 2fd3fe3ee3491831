package domain

import (
	"sort"

	snapshot "batteryusage/internal/modules/snapshot/domain"
)

// DiffEntry is one consumer's usage within one period.
type DiffEntry struct {
	Consumer            snapshot.ConsumerRef `json:"consumer"`
	Label               string               `json:"label"`
	ForegroundMs        int64                `json:"foreground_ms"`
	ForegroundServiceMs int64                `json:"foreground_service_ms"`
	BackgroundMs        int64                `json:"background_ms"`
	ScreenOnMs          int64                `json:"screen_on_ms"`
	PowerMah            float64              `json:"power_mah"`
	PercentOfTotal      float64              `json:"percent_of_total"`
	IsSystemEntry       bool                 `json:"is_system_entry"`
	IsUninstalled       bool                 `json:"is_uninstalled"`
	IsHidden            bool                 `json:"is_hidden"`
}

func (e DiffEntry) Key() string {
	return e.Consumer.Key()
}

// PackageName is empty for anything but app consumers.
func (e DiffEntry) PackageName() string {
	switch c := e.Consumer.(type) {
	case snapshot.App:
		return c.BasePackage()
	case snapshot.SystemComponent, snapshot.User:
		return ""
	default:
		panic("unhandled consumer type")
	}
}

// DiffData is the full result for one period. Percentages are relative to
// the period's own TotalPower.
type DiffData struct {
	StartTimestamp int64       `json:"start_timestamp"`
	EndTimestamp   int64       `json:"end_timestamp"`
	StartLevel     *int        `json:"start_level"`
	EndLevel       *int        `json:"end_level"`
	ScreenOnMs     int64       `json:"screen_on_ms"`
	TotalPower     float64     `json:"total_power"`
	AppEntries     []DiffEntry `json:"app_entries"`
	SystemEntries  []DiffEntry `json:"system_entries"`
}

// SetTotalPower stores the period total and recomputes every entry's share.
func (d *DiffData) SetTotalPower(total float64) {
	d.TotalPower = total
	for _, list := range [][]DiffEntry{d.AppEntries, d.SystemEntries} {
		for i := range list {
			if total == 0 {
				list[i].PercentOfTotal = 0
				continue
			}
			list[i].PercentOfTotal = list[i].PowerMah / total * 100
		}
	}
}

func (d DiffData) IsEmpty() bool {
	return len(d.AppEntries) == 0 && len(d.SystemEntries) == 0
}

func (d DiffData) Entries() []DiffEntry {
	out := make([]DiffEntry, 0, len(d.AppEntries)+len(d.SystemEntries))
	out = append(out, d.AppEntries...)
	return append(out, d.SystemEntries...)
}

func (d DiffData) PercentSum() float64 {
	sum := 0.0
	for _, e := range d.Entries() {
		sum += e.PercentOfTotal
	}
	return sum
}

func (d *DiffData) sort() {
	sortEntries(d.AppEntries)
	sortEntries(d.SystemEntries)
}

// sortEntries orders by share descending, ties broken by consumer key.
func sortEntries(entries []DiffEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PercentOfTotal != entries[j].PercentOfTotal {
			return entries[i].PercentOfTotal > entries[j].PercentOfTotal
		}
		return entries[i].Key() < entries[j].Key()
	})
}
