package out

import (
	"context"

	"batteryusage/internal/modules/snapshot/domain"
)

type SnapshotStore interface {
	AppendSnapshots(ctx context.Context, snapshots []domain.Snapshot) (int, error)
	SnapshotsSince(ctx context.Context, since int64) ([]domain.Snapshot, error)
	// LastFullChargeTimestamp returns apperrors.ErrNotFound when the device
	// was never seen charged.
	LastFullChargeTimestamp(ctx context.Context) (int64, error)
	AppendUsagePeriods(ctx context.Context, periods []domain.UsagePeriod) (int, error)
	UsagePeriodsSince(ctx context.Context, since int64) ([]domain.UsagePeriod, error)
	DeleteBefore(ctx context.Context, cutoff int64) (snapshots int64, periods int64, err error)
	Stats(ctx context.Context) (domain.StoreStats, error)
}

type RecordReader interface {
	ReadSnapshots(ctx context.Context, path string) (domain.RecordBatch, error)
	ReadUsagePeriods(ctx context.Context, path string) ([]domain.UsagePeriod, int, error)
}
