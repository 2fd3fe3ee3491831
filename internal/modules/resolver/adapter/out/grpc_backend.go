package out

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	resolverrpc "batteryusage/internal/modules/resolver/adapter/out/rpc"
	"batteryusage/internal/modules/resolver/domain"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

// GRPCBackend launches the resolver plugin binary for every call and talks to
// it over go-plugin's gRPC transport.
type GRPCBackend struct {
	manifest     domain.Manifest
	startTimeout time.Duration
	callTimeout  time.Duration
}

func NewGRPCBackend(manifest domain.Manifest) *GRPCBackend {
	return &GRPCBackend{manifest: manifest, startTimeout: defaultStartTimeout, callTimeout: defaultCallTimeout}
}

func (b *GRPCBackend) Describe(ctx context.Context) (domain.BackendInfo, error) {
	client, closeFn, err := b.connect()
	if err != nil {
		return domain.BackendInfo{}, err
	}
	defer closeFn()

	callCtx, cancel := b.callContext(ctx)
	defer cancel()
	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return domain.BackendInfo{}, b.wrapCallError(callCtx, "get metadata", err)
	}
	return domain.BackendInfo{Name: meta.Name, Version: meta.Version, Packages: int(meta.Packages)}, nil
}

func (b *GRPCBackend) Resolve(ctx context.Context, packageNames []string, locale string) (map[string]domain.PackageInfo, error) {
	out := make(map[string]domain.PackageInfo, len(packageNames))
	if len(packageNames) == 0 {
		return out, nil
	}
	client, closeFn, err := b.connect()
	if err != nil {
		return nil, err
	}
	defer closeFn()

	callCtx, cancel := b.callContext(ctx)
	defer cancel()
	response, err := client.ResolvePackages(callCtx, &resolverrpc.ResolveRequest{PackageNames: packageNames, Locale: locale})
	if err != nil {
		return nil, b.wrapCallError(callCtx, "resolve packages", err)
	}
	for _, record := range response.Packages {
		out[record.PackageName] = domain.PackageInfo{
			PackageName: record.PackageName,
			Label:       record.Label,
			Installed:   record.Installed,
		}
	}
	return out, nil
}

func (b *GRPCBackend) connect() (resolverrpc.PackageResolverClient, func(), error) {
	cmd := exec.Command(b.manifest.Binary)
	for key, value := range b.manifest.Env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  resolverrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          resolverrpc.PluginMap(nil),
		Cmd:              cmd,
		Managed:          true,
		StartTimeout:     b.startTimeout,
		Logger:           hclog.New(&hclog.LoggerOptions{Output: io.Discard, Level: hclog.NoLevel}),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start resolver plugin: %w", err)
	}
	raw, err := rpcClient.Dispense(resolverrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense resolver plugin: %w", err)
	}
	typed, ok := raw.(resolverrpc.PackageResolverClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("resolver rpc client type mismatch")
	}
	return typed, closeFn, nil
}

func (b *GRPCBackend) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, b.callTimeout)
}

func (b *GRPCBackend) wrapCallError(callCtx context.Context, op string, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", domain.ErrBackendTimeout, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
