package in

import (
	"context"

	"batteryusage/internal/modules/snapshot/dto"
	snapshotin "batteryusage/internal/modules/snapshot/port/in"
)

type CLIHandler struct {
	usecase snapshotin.Usecase
}

func NewCLIHandler(usecase snapshotin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) IngestSnapshots(ctx context.Context, path string) (dto.IngestOutput, error) {
	return h.usecase.IngestSnapshots(ctx, dto.IngestInput{Path: path})
}

func (h CLIHandler) IngestUsagePeriods(ctx context.Context, path string) (dto.IngestOutput, error) {
	return h.usecase.IngestUsagePeriods(ctx, dto.IngestInput{Path: path})
}

func (h CLIHandler) Prune(ctx context.Context, input dto.PruneInput) (dto.PruneOutput, error) {
	return h.usecase.Prune(ctx, input)
}

func (h CLIHandler) Stats(ctx context.Context) (dto.StatsOutput, error) {
	return h.usecase.Stats(ctx)
}
