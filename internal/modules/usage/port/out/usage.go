package out

import (
	"context"
	"time"

	"batteryusage/internal/modules/usage/domain"
)

type HistorySource interface {
	Window(ctx context.Context, lookback time.Duration, sinceLastFullCharge bool) (domain.Window, error)
}

// PackageResolver returns nil Packages when lookups are unavailable, which
// disables uninstalled detection for the run.
type PackageResolver interface {
	Resolve(ctx context.Context, packageNames []string) (domain.Packages, error)
}

type SlotProjector interface {
	SaveRun(ctx context.Context, run domain.Run) error
	// LatestSlot returns apperrors.ErrNotFound when no run holds the period.
	LatestSlot(ctx context.Context, key domain.PeriodKey) (domain.StoredSlot, error)
}

type Publisher interface {
	Publish(ctx context.Context, runID string, slots []domain.StoredSlot) error
	Latest(ctx context.Context, key domain.PeriodKey) (domain.StoredSlot, error)
}
