package usecase

import (
	"context"

	"batteryusage/internal/modules/usage/dto"
	usagein "batteryusage/internal/modules/usage/port/in"
	"batteryusage/internal/modules/usage/service"
)

type Interactor struct {
	svc *service.PipelineService
}

func NewInteractor(svc *service.PipelineService) usagein.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Timeline(ctx context.Context) (dto.TimelineOutput, error) {
	return i.svc.Timeline(ctx)
}

func (i *Interactor) Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error) {
	return i.svc.Run(ctx, input)
}

func (i *Interactor) Show(ctx context.Context, input dto.ShowInput) (dto.SlotOutput, error) {
	return i.svc.Show(ctx, input)
}

func (i *Interactor) Summary(ctx context.Context, input dto.SummaryInput) (dto.SlotOutput, error) {
	return i.svc.Summary(ctx, input)
}
