package out

import (
	"context"

	"batteryusage/internal/modules/resolver/domain"
)

// Backend answers package lookups in batches. Names missing from the result
// are unknown to the backend.
type Backend interface {
	Describe(ctx context.Context) (domain.BackendInfo, error)
	Resolve(ctx context.Context, packageNames []string, locale string) (map[string]domain.PackageInfo, error)
}
