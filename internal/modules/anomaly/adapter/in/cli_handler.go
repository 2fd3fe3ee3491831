package in

import (
	"context"

	"batteryusage/internal/modules/anomaly/dto"
	anomalyin "batteryusage/internal/modules/anomaly/port/in"
)

type CLIHandler struct {
	usecase anomalyin.Usecase
}

func NewCLIHandler(usecase anomalyin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Top(ctx context.Context) (dto.TopOutput, error) {
	return h.usecase.Top(ctx)
}

func (h CLIHandler) Dismiss(ctx context.Context, key string) error {
	return h.usecase.Dismiss(ctx, key)
}

func (h CLIHandler) Reset(ctx context.Context) error {
	return h.usecase.Reset(ctx)
}
