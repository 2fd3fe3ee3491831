package in

import (
	"context"

	"batteryusage/internal/modules/resolver/dto"
)

type Usecase interface {
	Lookup(ctx context.Context, input dto.LookupInput) (dto.LookupOutput, error)
	Doctor(ctx context.Context) (dto.DoctorResult, error)
	Clear(ctx context.Context) error
}
