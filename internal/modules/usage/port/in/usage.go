package in

import (
	"context"

	"batteryusage/internal/modules/usage/dto"
)

type Usecase interface {
	Timeline(ctx context.Context) (dto.TimelineOutput, error)
	Run(ctx context.Context, input dto.RunInput) (dto.RunOutput, error)
	Show(ctx context.Context, input dto.ShowInput) (dto.SlotOutput, error)
	Summary(ctx context.Context, input dto.SummaryInput) (dto.SlotOutput, error)
}
