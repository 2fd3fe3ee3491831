package usecase

import (
	"context"

	"batteryusage/internal/modules/resolver/dto"
	resolverin "batteryusage/internal/modules/resolver/port/in"
	"batteryusage/internal/modules/resolver/service"
)

type Interactor struct {
	svc *service.ResolverService
}

func NewInteractor(svc *service.ResolverService) resolverin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Lookup(ctx context.Context, input dto.LookupInput) (dto.LookupOutput, error) {
	return i.svc.Lookup(ctx, input)
}

func (i *Interactor) Doctor(ctx context.Context) (dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}

func (i *Interactor) Clear(ctx context.Context) error {
	return i.svc.Clear(ctx)
}
