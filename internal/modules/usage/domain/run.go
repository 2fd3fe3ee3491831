package domain

import (
	"sort"
	"time"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	timeline "batteryusage/internal/modules/timeline/domain"
)

// Window is the raw input of one run as loaded from storage.
type Window struct {
	Since        int64
	Snapshots    []snapshot.Snapshot
	UsagePeriods []snapshot.UsagePeriod
}

// Run is one persisted pipeline execution.
type Run struct {
	ID        string
	CreatedAt time.Time
	Mode      Mode
	Location  *time.Location
	Result    Result
}

// StoredEntry is a DiffEntry flattened for storage and transport.
type StoredEntry struct {
	Key                 string  `json:"key"`
	Kind                string  `json:"kind"`
	Label               string  `json:"label"`
	PackageName         string  `json:"package_name,omitempty"`
	ForegroundMs        int64   `json:"foreground_ms"`
	ForegroundServiceMs int64   `json:"foreground_service_ms"`
	BackgroundMs        int64   `json:"background_ms"`
	ScreenOnMs          int64   `json:"screen_on_ms"`
	PowerMah            float64 `json:"power_mah"`
	PercentOfTotal      float64 `json:"percent_of_total"`
	IsSystemEntry       bool    `json:"is_system_entry"`
	IsUninstalled       bool    `json:"is_uninstalled"`
	IsHidden            bool    `json:"is_hidden"`
}

// StoredSlot is one period of a run, app entries first.
type StoredSlot struct {
	RunID          string        `json:"run_id"`
	Day            int           `json:"day"`
	Hour           int           `json:"hour"`
	Label          string        `json:"label"`
	StartTimestamp int64         `json:"start_timestamp"`
	EndTimestamp   int64         `json:"end_timestamp"`
	StartLevel     *int          `json:"start_level"`
	EndLevel       *int          `json:"end_level"`
	ScreenOnMs     int64         `json:"screen_on_ms"`
	TotalPower     float64       `json:"total_power"`
	Entries        []StoredEntry `json:"entries"`
}

func (s StoredSlot) Key() PeriodKey {
	return PeriodKey{Day: s.Day, Hour: s.Hour}
}

func (r Run) Slots() []StoredSlot {
	slots := r.Result.Usage.Slots()
	out := make([]StoredSlot, 0, len(slots))
	for _, slot := range slots {
		label := r.Result.Timeline.PeriodLabel(slot.Day, slot.Hour, r.Location)
		out = append(out, FlattenSlot(r.ID, slot.PeriodKey, label, slot.DiffData))
	}
	return out
}

func FlattenSlot(runID string, key PeriodKey, label string, data DiffData) StoredSlot {
	entries := make([]StoredEntry, 0, len(data.AppEntries)+len(data.SystemEntries))
	for _, e := range data.Entries() {
		entries = append(entries, StoredEntry{
			Key:                 e.Key(),
			Kind:                string(e.Consumer.Kind()),
			Label:               e.Label,
			PackageName:         e.PackageName(),
			ForegroundMs:        e.ForegroundMs,
			ForegroundServiceMs: e.ForegroundServiceMs,
			BackgroundMs:        e.BackgroundMs,
			ScreenOnMs:          e.ScreenOnMs,
			PowerMah:            e.PowerMah,
			PercentOfTotal:      e.PercentOfTotal,
			IsSystemEntry:       e.IsSystemEntry,
			IsUninstalled:       e.IsUninstalled,
			IsHidden:            e.IsHidden,
		})
	}
	return StoredSlot{
		RunID:          runID,
		Day:            key.Day,
		Hour:           key.Hour,
		Label:          label,
		StartTimestamp: data.StartTimestamp,
		EndTimestamp:   data.EndTimestamp,
		StartLevel:     data.StartLevel,
		EndLevel:       data.EndLevel,
		ScreenOnMs:     data.ScreenOnMs,
		TotalPower:     data.TotalPower,
		Entries:        entries,
	}
}

// PackageNames lists the base packages of every real app seen in history.
func PackageNames(history snapshot.History) []string {
	seen := map[string]struct{}{}
	for _, frame := range history {
		for _, snap := range frame {
			app, ok := snap.Consumer.(snapshot.App)
			if !ok || app.IsFake() {
				continue
			}
			seen[app.BasePackage()] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SummaryBounds clamps a trailing window to the timeline.
func SummaryBounds(tl timeline.Timeline, window time.Duration) (int64, int64) {
	end := tl.End()
	start := tl.Start()
	if window > 0 {
		if lower := end - window.Milliseconds(); lower > start {
			start = lower
		}
	}
	return start, end
}
