package in

import (
	"context"

	"batteryusage/internal/modules/snapshot/dto"
)

type Usecase interface {
	IngestSnapshots(ctx context.Context, input dto.IngestInput) (dto.IngestOutput, error)
	IngestUsagePeriods(ctx context.Context, input dto.IngestInput) (dto.IngestOutput, error)
	Window(ctx context.Context, input dto.WindowInput) (dto.WindowOutput, error)
	Prune(ctx context.Context, input dto.PruneInput) (dto.PruneOutput, error)
	Stats(ctx context.Context) (dto.StatsOutput, error)
}
