package in

import (
	"context"
	"time"

	"batteryusage/internal/modules/usage/dto"
	usagein "batteryusage/internal/modules/usage/port/in"
)

type CLIHandler struct {
	usecase usagein.Usecase
}

func NewCLIHandler(usecase usagein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Timeline(ctx context.Context) (dto.TimelineOutput, error) {
	return h.usecase.Timeline(ctx)
}

func (h CLIHandler) Run(ctx context.Context, purge bool) (dto.RunOutput, error) {
	return h.usecase.Run(ctx, dto.RunInput{Purge: purge})
}

func (h CLIHandler) Show(ctx context.Context, day, hour int, fromCache bool) (dto.SlotOutput, error) {
	return h.usecase.Show(ctx, dto.ShowInput{Day: day, Hour: hour, FromCache: fromCache})
}

func (h CLIHandler) Summary(ctx context.Context, window time.Duration) (dto.SlotOutput, error) {
	return h.usecase.Summary(ctx, dto.SummaryInput{Window: window})
}
