package dto

import "time"

// All selects the aggregate over every day or every hour.
const All = -1

type RunInput struct {
	Purge bool
}

type RunOutput struct {
	RunID   string
	Mode    string
	Start   time.Time
	End     time.Time
	Days    int
	Periods int
	Skipped []PeriodRef
	Total   SlotOutput
}

type PeriodRef struct {
	Day  int
	Hour int
}

type ShowInput struct {
	Day       int
	Hour      int
	FromCache bool
}

type SummaryInput struct {
	Window time.Duration
}

type EntryOutput struct {
	Key                 string
	Kind                string
	Label               string
	PackageName         string
	ForegroundMs        int64
	ForegroundServiceMs int64
	BackgroundMs        int64
	ScreenOnMs          int64
	PowerMah            float64
	PercentOfTotal      float64
	IsSystemEntry       bool
	IsUninstalled       bool
	IsHidden            bool
}

type SlotOutput struct {
	RunID      string
	Day        int
	Hour       int
	Label      string
	Start      time.Time
	End        time.Time
	StartLevel *int
	EndLevel   *int
	ScreenOnMs int64
	TotalPower float64
	Entries    []EntryOutput
}

type BreakpointOutput struct {
	Time  time.Time
	Level *int
}

type DayOutput struct {
	Index int
	Label string
	Hours []BreakpointOutput
}

type TimelineOutput struct {
	Location string
	Start    time.Time
	End      time.Time
	Days     []DayOutput
}
