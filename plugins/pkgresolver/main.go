package main

import (
	"context"
	"os"

	resolverout "batteryusage/internal/modules/resolver/adapter/out"
	resolverrpc "batteryusage/internal/modules/resolver/adapter/out/rpc"
	"batteryusage/internal/modules/resolver/domain"

	"github.com/hashicorp/go-plugin"
)

type server struct {
	inventory *resolverout.InventoryBackend
}

func (s *server) GetMetadata(ctx context.Context, _ *resolverrpc.Empty) (*resolverrpc.Metadata, error) {
	info, err := s.inventory.Describe(ctx)
	if err != nil {
		return nil, err
	}
	return &resolverrpc.Metadata{Name: "pkgresolver", Version: info.Version, Packages: int32(info.Packages)}, nil
}

func (s *server) ResolvePackages(ctx context.Context, in *resolverrpc.ResolveRequest) (*resolverrpc.ResolveResponse, error) {
	found, err := s.inventory.Resolve(ctx, in.PackageNames, in.Locale)
	if err != nil {
		return nil, err
	}
	out := &resolverrpc.ResolveResponse{Packages: make([]resolverrpc.PackageRecord, 0, len(found))}
	for _, name := range in.PackageNames {
		info, ok := found[name]
		if !ok {
			continue
		}
		out.Packages = append(out.Packages, resolverrpc.PackageRecord{
			PackageName: info.PackageName,
			Label:       info.Label,
			Installed:   info.Installed,
		})
	}
	return out, nil
}

func main() {
	path := os.Getenv(domain.InventoryEnv)
	if path == "" {
		path = "packages.yaml"
	}
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: resolverrpc.HandshakeConfig,
		Plugins:         resolverrpc.PluginMap(&server{inventory: resolverout.NewInventoryBackend(path)}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
