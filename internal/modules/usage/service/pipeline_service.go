package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	timeline "batteryusage/internal/modules/timeline/domain"
	"batteryusage/internal/modules/usage/domain"
	"batteryusage/internal/modules/usage/dto"
	usageout "batteryusage/internal/modules/usage/port/out"
	"batteryusage/internal/platform/clock"
	apperrors "batteryusage/internal/platform/errors"
	"batteryusage/internal/platform/id"
	"batteryusage/internal/platform/metrics"

	"go.uber.org/zap"
)

// Settings is the static configuration of the pipeline.
type Settings struct {
	Options             domain.Options
	Location            *time.Location
	MaxGap              time.Duration
	Retention           time.Duration
	SinceLastFullCharge bool
}

type PipelineService struct {
	clock     clock.Clock
	ids       id.Generator
	source    usageout.HistorySource
	resolver  usageout.PackageResolver
	projector usageout.SlotProjector
	publisher usageout.Publisher
	settings  Settings
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewPipelineService wires the pipeline. resolver and publisher are optional.
func NewPipelineService(
	clk clock.Clock,
	ids id.Generator,
	source usageout.HistorySource,
	resolver usageout.PackageResolver,
	projector usageout.SlotProjector,
	publisher usageout.Publisher,
	settings Settings,
	m *metrics.Metrics,
	logger *zap.Logger,
) *PipelineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PipelineService{
		clock:     clk,
		ids:       ids,
		source:    source,
		resolver:  resolver,
		projector: projector,
		publisher: publisher,
		settings:  settings,
		metrics:   m,
		logger:    logger,
	}
}

type loaded struct {
	history  snapshot.History
	periods  []snapshot.UsagePeriod
	location *time.Location
}

func (s *PipelineService) load(ctx context.Context) (loaded, error) {
	window, err := s.source.Window(ctx, s.settings.Retention, s.settings.SinceLastFullCharge)
	if err != nil {
		return loaded{}, err
	}
	history, dropped := snapshot.NewHistory(window.Snapshots)
	if dropped > 0 {
		s.metrics.SnapshotsDropped(dropped)
		s.logger.Warn("dropped malformed stored snapshots", zap.Int("dropped", dropped))
	}
	return loaded{
		history:  history,
		periods:  window.UsagePeriods,
		location: timeline.Location(s.settings.Location, history.LatestZoneID()),
	}, nil
}

func (s *PipelineService) packages(ctx context.Context, history snapshot.History) domain.Packages {
	if s.resolver == nil {
		return nil
	}
	names := domain.PackageNames(history)
	packages, err := s.resolver.Resolve(ctx, names)
	if err != nil {
		s.logger.Warn("package lookup unavailable, uninstalled detection disabled", zap.Error(err))
		return nil
	}
	for _, name := range names {
		if _, ok := packages[name]; !ok {
			s.logger.Debug("falling back to recorded label",
				zap.Error(fmt.Errorf("%w: package %s", apperrors.ErrUnresolvableConsumer, name)))
		}
	}
	return packages
}

func (s *PipelineService) builder(loc *time.Location) timeline.Builder {
	return timeline.NewBuilder(loc, s.settings.MaxGap)
}

func (s *PipelineService) Timeline(ctx context.Context) (dto.TimelineOutput, error) {
	in, err := s.load(ctx)
	if err != nil {
		return dto.TimelineOutput{}, err
	}
	tl, err := s.builder(in.location).Build(in.history)
	if err != nil {
		return dto.TimelineOutput{}, err
	}
	out := dto.TimelineOutput{
		Location: in.location.String(),
		Start:    time.UnixMilli(tl.Start()).In(in.location),
		End:      time.UnixMilli(tl.End()).In(in.location),
		Days:     make([]dto.DayOutput, 0, tl.Days()),
	}
	for day := 0; day < tl.Days(); day++ {
		row := tl.Hourly[day]
		hours := make([]dto.BreakpointOutput, 0, len(row))
		for _, bp := range row {
			hours = append(hours, dto.BreakpointOutput{Time: time.UnixMilli(bp.Timestamp).In(in.location), Level: bp.Level})
		}
		out.Days = append(out.Days, dto.DayOutput{Index: day, Label: tl.PeriodLabel(day, timeline.All, in.location), Hours: hours})
	}
	return out, nil
}

// Run computes the full indexed usage map, persists it and publishes it.
func (s *PipelineService) Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error) {
	started := s.clock.Now()
	out, err := s.run(ctx, input)
	outcome := "ok"
	switch {
	case errors.Is(err, apperrors.ErrNoUsageData):
		outcome = "no_data"
	case err != nil:
		outcome = "error"
	}
	s.metrics.ObserveRun(outcome, s.clock.Now().Sub(started))
	return out, err
}

func (s *PipelineService) run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error) {
	mode := domain.ModeFull
	if input.Purge {
		mode = domain.ModePurge
	}
	in, err := s.load(ctx)
	if err != nil {
		return dto.RunOutput{}, err
	}
	assembler := domain.Assembler{
		Builder:  s.builder(in.location),
		Options:  s.settings.Options,
		Packages: s.packages(ctx, in.history),
	}
	result, err := assembler.Run(in.history, in.periods, mode)
	if err != nil {
		s.logger.Info("no usage data yet", zap.Int("timestamps", len(in.history)), zap.Error(err))
		return dto.RunOutput{}, err
	}
	for range result.Skipped {
		s.metrics.PeriodSkipped("clock_skew")
	}
	if len(result.Skipped) > 0 {
		s.logger.Warn("skipped periods with non-positive span", zap.Int("skipped", len(result.Skipped)))
	}

	run := domain.Run{ID: s.ids.New(), CreatedAt: s.clock.Now(), Mode: mode, Location: in.location, Result: result}
	if err := s.projector.SaveRun(ctx, run); err != nil {
		return dto.RunOutput{}, fmt.Errorf("save run %s: %w", run.ID, err)
	}
	slots := run.Slots()
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, run.ID, slots); err != nil {
			s.logger.Warn("publish usage map failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	s.logger.Info("usage run complete",
		zap.String("run_id", run.ID),
		zap.String("mode", mode.String()),
		zap.Int("periods", result.Usage.Len()),
		zap.Int("skipped", len(result.Skipped)),
	)

	out := dto.RunOutput{
		RunID:   run.ID,
		Mode:    mode.String(),
		Start:   time.UnixMilli(result.Timeline.Start()).In(in.location),
		End:     time.UnixMilli(result.Timeline.End()).In(in.location),
		Days:    result.Timeline.Days(),
		Periods: result.Usage.Len(),
	}
	for _, key := range result.Skipped {
		out.Skipped = append(out.Skipped, dto.PeriodRef{Day: key.Day, Hour: key.Hour})
	}
	for _, slot := range slots {
		if slot.Day == domain.All && slot.Hour == domain.All {
			out.Total = slotOutput(slot)
		}
	}
	return out, nil
}

func (s *PipelineService) Show(ctx context.Context, input dto.ShowInput) (dto.SlotOutput, error) {
	if err := validateKey(input.Day, input.Hour); err != nil {
		return dto.SlotOutput{}, err
	}
	key := domain.PeriodKey{Day: input.Day, Hour: input.Hour}
	var (
		slot domain.StoredSlot
		err  error
	)
	if input.FromCache {
		if s.publisher == nil {
			return dto.SlotOutput{}, fmt.Errorf("%w: publisher is not configured", apperrors.ErrInvalidInput)
		}
		slot, err = s.publisher.Latest(ctx, key)
	} else {
		slot, err = s.projector.LatestSlot(ctx, key)
	}
	if err != nil {
		return dto.SlotOutput{}, err
	}
	return slotOutput(slot), nil
}

// Summary diffs one trailing window in purge mode without persisting it.
func (s *PipelineService) Summary(ctx context.Context, input dto.SummaryInput) (dto.SlotOutput, error) {
	if input.Window < 0 {
		return dto.SlotOutput{}, fmt.Errorf("%w: window must not be negative", apperrors.ErrInvalidInput)
	}
	in, err := s.load(ctx)
	if err != nil {
		return dto.SlotOutput{}, err
	}
	b := s.builder(in.location)
	tl, err := b.Build(in.history)
	if err != nil {
		return dto.SlotOutput{}, fmt.Errorf("%w: %w", apperrors.ErrNoUsageData, err)
	}
	engine := domain.NewEngine(b.Sampler(in.history), in.periods, s.packages(ctx, in.history), s.settings.Options)
	lower, upper := domain.SummaryBounds(tl, input.Window)
	data, err := engine.Diff(lower, upper, domain.ModePurge)
	if err != nil {
		return dto.SlotOutput{}, err
	}
	start := time.UnixMilli(lower).In(in.location)
	end := time.UnixMilli(upper).In(in.location)
	label := fmt.Sprintf("%s - %s", start.Format("Mon, Jan 2 15:04"), end.Format("Mon, Jan 2 15:04"))
	key := domain.PeriodKey{Day: domain.All, Hour: domain.All}
	return slotOutput(domain.FlattenSlot("", key, label, data)), nil
}

func validateKey(day, hour int) error {
	if day < domain.All || hour < domain.All {
		return fmt.Errorf("%w: period indices must be >= -1", apperrors.ErrInvalidInput)
	}
	if day == domain.All && hour != domain.All {
		return fmt.Errorf("%w: an hour needs a specific day", apperrors.ErrInvalidInput)
	}
	return nil
}

func slotOutput(slot domain.StoredSlot) dto.SlotOutput {
	out := dto.SlotOutput{
		RunID:      slot.RunID,
		Day:        slot.Day,
		Hour:       slot.Hour,
		Label:      slot.Label,
		Start:      time.UnixMilli(slot.StartTimestamp).UTC(),
		End:        time.UnixMilli(slot.EndTimestamp).UTC(),
		StartLevel: slot.StartLevel,
		EndLevel:   slot.EndLevel,
		ScreenOnMs: slot.ScreenOnMs,
		TotalPower: slot.TotalPower,
		Entries:    make([]dto.EntryOutput, 0, len(slot.Entries)),
	}
	for _, e := range slot.Entries {
		out.Entries = append(out.Entries, dto.EntryOutput{
			Key:                 e.Key,
			Kind:                e.Kind,
			Label:               e.Label,
			PackageName:         e.PackageName,
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
	return out
}
