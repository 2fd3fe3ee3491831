package domain

import (
	"errors"
	"fmt"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	timeline "batteryusage/internal/modules/timeline/domain"
	apperrors "batteryusage/internal/platform/errors"
)

// Result is the output of one pipeline run.
type Result struct {
	Timeline timeline.Timeline
	Usage    IndexedUsageMap
	// Skipped lists periods dropped for a non-positive span.
	Skipped []PeriodKey
}

type Assembler struct {
	Builder  timeline.Builder
	Options  Options
	Packages Packages
}

// Run builds the timeline for history and diffs every period of it. When the
// history cannot be bucketed it reports ErrNoUsageData instead of an empty map.
func (a Assembler) Run(history snapshot.History, periods []snapshot.UsagePeriod, mode Mode) (Result, error) {
	tl, err := a.Builder.Build(history)
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientData) {
			return Result{}, fmt.Errorf("%w: %w", apperrors.ErrNoUsageData, err)
		}
		return Result{}, err
	}
	engine := NewEngine(a.Builder.Sampler(history), periods, a.Packages, a.Options)
	usage, skipped, err := Assemble(tl, engine, mode)
	if err != nil {
		return Result{}, err
	}
	return Result{Timeline: tl, Usage: usage, Skipped: skipped}, nil
}

// Assemble diffs each hourly period, each day and the whole range of tl.
// Every period is normalised against its own total.
func Assemble(tl timeline.Timeline, engine *Engine, mode Mode) (IndexedUsageMap, []PeriodKey, error) {
	if len(tl.Daily) < 2 {
		return IndexedUsageMap{}, nil, apperrors.ErrNoUsageData
	}
	out := newIndexedUsageMap()
	var skipped []PeriodKey
	put := func(key PeriodKey, lower, upper int64) error {
		data, err := engine.Diff(lower, upper, mode)
		if err != nil {
			if errors.Is(err, apperrors.ErrClockSkew) {
				skipped = append(skipped, key)
				return nil
			}
			return fmt.Errorf("diff period %d/%d: %w", key.Day, key.Hour, err)
		}
		out.periods[key] = data
		return nil
	}

	for day := 0; day < tl.Days(); day++ {
		row := tl.Hourly[day]
		for hour := 0; hour+1 < len(row); hour++ {
			if err := put(PeriodKey{Day: day, Hour: hour}, row[hour].Timestamp, row[hour+1].Timestamp); err != nil {
				return IndexedUsageMap{}, nil, err
			}
		}
		if err := put(PeriodKey{Day: day, Hour: All}, tl.Daily[day].Timestamp, tl.Daily[day+1].Timestamp); err != nil {
			return IndexedUsageMap{}, nil, err
		}
	}
	if err := put(PeriodKey{Day: All, Hour: All}, tl.Start(), tl.End()); err != nil {
		return IndexedUsageMap{}, nil, err
	}
	return out, skipped, nil
}
