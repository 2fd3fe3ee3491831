package usecase

import (
	"context"

	"batteryusage/internal/modules/snapshot/dto"
	snapshotin "batteryusage/internal/modules/snapshot/port/in"
	"batteryusage/internal/modules/snapshot/service"
)

type Interactor struct {
	svc *service.SnapshotService
}

func NewInteractor(svc *service.SnapshotService) snapshotin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) IngestSnapshots(ctx context.Context, input dto.IngestInput) (dto.IngestOutput, error) {
	return i.svc.IngestSnapshots(ctx, input)
}

func (i *Interactor) IngestUsagePeriods(ctx context.Context, input dto.IngestInput) (dto.IngestOutput, error) {
	return i.svc.IngestUsagePeriods(ctx, input)
}

func (i *Interactor) Window(ctx context.Context, input dto.WindowInput) (dto.WindowOutput, error) {
	return i.svc.Window(ctx, input)
}

func (i *Interactor) Prune(ctx context.Context, input dto.PruneInput) (dto.PruneOutput, error) {
	return i.svc.Prune(ctx, input)
}

func (i *Interactor) Stats(ctx context.Context) (dto.StatsOutput, error) {
	return i.svc.Stats(ctx)
}
