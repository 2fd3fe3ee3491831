package out

import (
	"context"

	"batteryusage/internal/modules/anomaly/domain"
)

type EventSource interface {
	Load(ctx context.Context) ([]domain.Event, error)
}

type DismissalStore interface {
	Load(ctx context.Context) (domain.Dismissals, error)
	Save(ctx context.Context, dismissals domain.Dismissals) error
	Clear(ctx context.Context) error
}
