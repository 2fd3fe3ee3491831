package in

import (
	"context"

	"batteryusage/internal/modules/anomaly/dto"
)

type Usecase interface {
	Top(ctx context.Context) (dto.TopOutput, error)
	Dismiss(ctx context.Context, key string) error
	Reset(ctx context.Context) error
}
