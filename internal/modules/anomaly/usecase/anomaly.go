package usecase

import (
	"context"

	"batteryusage/internal/modules/anomaly/dto"
	anomalyin "batteryusage/internal/modules/anomaly/port/in"
	"batteryusage/internal/modules/anomaly/service"
)

type Interactor struct {
	svc *service.AnomalyService
}

func NewInteractor(svc *service.AnomalyService) anomalyin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Top(ctx context.Context) (dto.TopOutput, error) {
	return i.svc.Top(ctx)
}

func (i *Interactor) Dismiss(ctx context.Context, key string) error {
	return i.svc.Dismiss(ctx, key)
}

func (i *Interactor) Reset(ctx context.Context) error {
	return i.svc.Reset(ctx)
}
