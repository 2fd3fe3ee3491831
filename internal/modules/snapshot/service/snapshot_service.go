package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"batteryusage/internal/modules/snapshot/domain"
	"batteryusage/internal/modules/snapshot/dto"
	snapshotout "batteryusage/internal/modules/snapshot/port/out"
	"batteryusage/internal/platform/clock"
	apperrors "batteryusage/internal/platform/errors"
	"batteryusage/internal/platform/metrics"

	"go.uber.org/zap"
)

type SnapshotService struct {
	clock   clock.Clock
	store   snapshotout.SnapshotStore
	reader  snapshotout.RecordReader
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewSnapshotService(clk clock.Clock, store snapshotout.SnapshotStore, reader snapshotout.RecordReader, m *metrics.Metrics, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{clock: clk, store: store, reader: reader, metrics: m, logger: logger}
}

func (s *SnapshotService) IngestSnapshots(ctx context.Context, input dto.IngestInput) (dto.IngestOutput, error) {
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return dto.IngestOutput{}, fmt.Errorf("%w: snapshot file is required", apperrors.ErrInvalidInput)
	}
	batch, err := s.reader.ReadSnapshots(ctx, path)
	if err != nil {
		return dto.IngestOutput{}, err
	}
	out := dto.IngestOutput{Read: len(batch.Records) + batch.Malformed, Dropped: batch.Malformed}
	valid := make([]domain.Snapshot, 0, len(batch.Records))
	for i, record := range batch.Records {
		snap, err := record.ToSnapshot()
		if err != nil {
			out.Dropped++
			s.logger.Debug("dropping snapshot record", zap.Int("index", i), zap.Error(err))
			continue
		}
		valid = append(valid, snap)
	}
	stored, err := s.store.AppendSnapshots(ctx, valid)
	if err != nil {
		return dto.IngestOutput{}, err
	}
	out.Stored = stored
	s.metrics.SnapshotsDropped(out.Dropped)
	s.logger.Info("ingested snapshots",
		zap.String("path", path),
		zap.Int("read", out.Read),
		zap.Int("stored", out.Stored),
		zap.Int("dropped", out.Dropped),
	)
	return out, nil
}

func (s *SnapshotService) IngestUsagePeriods(ctx context.Context, input dto.IngestInput) (dto.IngestOutput, error) {
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return dto.IngestOutput{}, fmt.Errorf("%w: usage period file is required", apperrors.ErrInvalidInput)
	}
	periods, malformed, err := s.reader.ReadUsagePeriods(ctx, path)
	if err != nil {
		return dto.IngestOutput{}, err
	}
	out := dto.IngestOutput{Read: len(periods) + malformed, Dropped: malformed}
	valid := make([]domain.UsagePeriod, 0, len(periods))
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			out.Dropped++
			s.logger.Debug("dropping usage period", zap.String("package", p.PackageName), zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}
	stored, err := s.store.AppendUsagePeriods(ctx, valid)
	if err != nil {
		return dto.IngestOutput{}, err
	}
	out.Stored = stored
	s.logger.Info("ingested usage periods",
		zap.String("path", path),
		zap.Int("stored", out.Stored),
		zap.Int("dropped", out.Dropped),
	)
	return out, nil
}

// Window loads everything recorded within the lookback, narrowed to the last
// full charge when requested and one is known.
func (s *SnapshotService) Window(ctx context.Context, input dto.WindowInput) (dto.WindowOutput, error) {
	if input.Lookback <= 0 {
		return dto.WindowOutput{}, fmt.Errorf("%w: lookback must be positive", apperrors.ErrInvalidInput)
	}
	since := s.clock.Now().Add(-input.Lookback).UnixMilli()
	out := dto.WindowOutput{}
	full, err := s.store.LastFullChargeTimestamp(ctx)
	switch {
	case err == nil:
		out.LastFullCharge = full
		if input.SinceLastFullCharge && full > since {
			since = full
		}
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		return dto.WindowOutput{}, err
	}
	out.Since = since

	snaps, err := s.store.SnapshotsSince(ctx, since)
	if err != nil {
		return dto.WindowOutput{}, err
	}
	periods, err := s.store.UsagePeriodsSince(ctx, since)
	if err != nil {
		return dto.WindowOutput{}, err
	}
	out.Snapshots = snaps
	out.UsagePeriods = periods
	return out, nil
}

func (s *SnapshotService) Prune(ctx context.Context, input dto.PruneInput) (dto.PruneOutput, error) {
	if input.Retention <= 0 {
		return dto.PruneOutput{}, fmt.Errorf("%w: retention must be positive", apperrors.ErrInvalidInput)
	}
	cutoff := s.clock.Now().Add(-input.Retention).UnixMilli()
	snaps, periods, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return dto.PruneOutput{}, err
	}
	s.logger.Info("pruned history", zap.Int64("cutoff", cutoff), zap.Int64("snapshots", snaps), zap.Int64("usage_periods", periods))
	return dto.PruneOutput{Cutoff: cutoff, Snapshots: snaps, UsagePeriods: periods}, nil
}

func (s *SnapshotService) Stats(ctx context.Context) (dto.StatsOutput, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return dto.StatsOutput{}, err
	}
	return dto.StatsOutput{
		Snapshots:      stats.Snapshots,
		Timestamps:     stats.Timestamps,
		UsagePeriods:   stats.UsagePeriods,
		First:          millis(stats.First),
		Last:           millis(stats.Last),
		LastFullCharge: millis(stats.LastFullCharge),
	}, nil
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
