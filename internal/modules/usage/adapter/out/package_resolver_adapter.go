package out

import (
	"context"

	resolverdto "batteryusage/internal/modules/resolver/dto"
	resolverin "batteryusage/internal/modules/resolver/port/in"
	"batteryusage/internal/modules/usage/domain"
	usageout "batteryusage/internal/modules/usage/port/out"
)

type PackageResolverAdapter struct {
	resolver resolverin.Usecase
	locale   string
}

func NewPackageResolverAdapter(resolver resolverin.Usecase, locale string) usageout.PackageResolver {
	return &PackageResolverAdapter{resolver: resolver, locale: locale}
}

// Resolve reports nil Packages for a degraded lookup so that a failing
// backend never marks every app as uninstalled.
func (a *PackageResolverAdapter) Resolve(ctx context.Context, packageNames []string) (domain.Packages, error) {
	out, err := a.resolver.Lookup(ctx, resolverdto.LookupInput{Packages: packageNames, Locale: a.locale})
	if err != nil {
		return nil, err
	}
	if out.Degraded {
		return nil, nil
	}
	packages := make(domain.Packages, len(out.Packages))
	for _, pkg := range out.Packages {
		if !pkg.Resolved {
			continue
		}
		packages[pkg.PackageName] = domain.Package{Label: pkg.Label, Installed: pkg.Installed}
	}
	return packages, nil
}
