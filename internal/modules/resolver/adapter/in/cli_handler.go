package in

import (
	"context"

	"batteryusage/internal/modules/resolver/dto"
	resolverin "batteryusage/internal/modules/resolver/port/in"
)

type CLIHandler struct {
	usecase resolverin.Usecase
}

func NewCLIHandler(usecase resolverin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Lookup(ctx context.Context, packages []string, locale string) (dto.LookupOutput, error) {
	return h.usecase.Lookup(ctx, dto.LookupInput{Packages: packages, Locale: locale})
}

func (h CLIHandler) Doctor(ctx context.Context) (dto.DoctorResult, error) {
	return h.usecase.Doctor(ctx)
}

func (h CLIHandler) Clear(ctx context.Context) error {
	return h.usecase.Clear(ctx)
}
