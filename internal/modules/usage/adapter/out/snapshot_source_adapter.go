package out

import (
	"context"
	"time"

	snapshotdto "batteryusage/internal/modules/snapshot/dto"
	snapshotin "batteryusage/internal/modules/snapshot/port/in"
	"batteryusage/internal/modules/usage/domain"
	usageout "batteryusage/internal/modules/usage/port/out"
)

type SnapshotSourceAdapter struct {
	snapshots snapshotin.Usecase
}

func NewSnapshotSourceAdapter(snapshots snapshotin.Usecase) usageout.HistorySource {
	return &SnapshotSourceAdapter{snapshots: snapshots}
}

func (a *SnapshotSourceAdapter) Window(ctx context.Context, lookback time.Duration, sinceLastFullCharge bool) (domain.Window, error) {
	window, err := a.snapshots.Window(ctx, snapshotdto.WindowInput{Lookback: lookback, SinceLastFullCharge: sinceLastFullCharge})
	if err != nil {
		return domain.Window{}, err
	}
	return domain.Window{
		Since:        window.Since,
		Snapshots:    window.Snapshots,
		UsagePeriods: window.UsagePeriods,
	}, nil
}
