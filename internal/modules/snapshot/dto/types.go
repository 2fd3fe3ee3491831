package dto

import (
	"time"

	"batteryusage/internal/modules/snapshot/domain"
)

type IngestInput struct {
	Path string
}

type IngestOutput struct {
	Read    int
	Stored  int
	Dropped int
}

type WindowInput struct {
	Lookback            time.Duration
	SinceLastFullCharge bool
}

type WindowOutput struct {
	Since          int64
	LastFullCharge int64
	Snapshots      []domain.Snapshot
	UsagePeriods   []domain.UsagePeriod
}

type PruneInput struct {
	Retention time.Duration
}

type PruneOutput struct {
	Cutoff       int64
	Snapshots    int64
	UsagePeriods int64
}

type StatsOutput struct {
	Snapshots      int64
	Timestamps     int64
	UsagePeriods   int64
	First          time.Time
	Last           time.Time
	LastFullCharge time.Time
}
