package bootstrap

import (
	"fmt"
	"path/filepath"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	anomalyinadapter "batteryusage/internal/modules/anomaly/adapter/in"
	anomalyoutadapter "batteryusage/internal/modules/anomaly/adapter/out"
	anomalyservice "batteryusage/internal/modules/anomaly/service"
	anomalyusecase "batteryusage/internal/modules/anomaly/usecase"
	resolverinadapter "batteryusage/internal/modules/resolver/adapter/in"
	resolveroutadapter "batteryusage/internal/modules/resolver/adapter/out"
	resolverdomain "batteryusage/internal/modules/resolver/domain"
	resolverin "batteryusage/internal/modules/resolver/port/in"
	resolverout "batteryusage/internal/modules/resolver/port/out"
	resolverservice "batteryusage/internal/modules/resolver/service"
	resolverusecase "batteryusage/internal/modules/resolver/usecase"
	snapshotinadapter "batteryusage/internal/modules/snapshot/adapter/in"
	snapshotoutadapter "batteryusage/internal/modules/snapshot/adapter/out"
	snapshotservice "batteryusage/internal/modules/snapshot/service"
	snapshotusecase "batteryusage/internal/modules/snapshot/usecase"
	usageinadapter "batteryusage/internal/modules/usage/adapter/in"
	usageoutadapter "batteryusage/internal/modules/usage/adapter/out"
	usagedomain "batteryusage/internal/modules/usage/domain"
	usageout "batteryusage/internal/modules/usage/port/out"
	usageservice "batteryusage/internal/modules/usage/service"
	usageusecase "batteryusage/internal/modules/usage/usecase"
	"batteryusage/internal/platform/clock"
	"batteryusage/internal/platform/config"
	"batteryusage/internal/platform/id"
	"batteryusage/internal/platform/metrics"
)

type App struct {
	SnapshotCLI snapshotinadapter.CLIHandler
	UsageCLI    usageinadapter.CLIHandler
	ResolverCLI resolverinadapter.CLIHandler
	AnomalyCLI  anomalyinadapter.CLIHandler
	Config      config.Config
	Metrics     *metrics.Metrics
	Logger      *zap.Logger

	// ResolverEnabled is false when the resolver kind is "none".
	ResolverEnabled bool

	closers []func() error
}

func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := clock.SystemClock{}
	ids := id.UUID{}
	m := metrics.New()
	app := &App{Config: cfg, Metrics: m, Logger: logger}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	snapshotStore, err := snapshotoutadapter.NewSQLiteSnapshotStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("new snapshot store: %w", err)
	}
	app.closers = append(app.closers, snapshotStore.Close)
	snapshotUC := snapshotusecase.NewInteractor(snapshotservice.NewSnapshotService(
		clk,
		snapshotStore,
		snapshotoutadapter.NewJSONLRecordReader(),
		m,
		logger.Named("snapshot"),
	))

	resolverUC, err := newResolver(cfg.Resolver, m, logger.Named("resolver"))
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	projector, err := usageoutadapter.NewSQLSlotProjector(cfg.DBPath)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("new slot projector: %w", err)
	}
	app.closers = append(app.closers, projector.Close)

	var publisher usageout.Publisher
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.closers = append(app.closers, client.Close)
		publisher = usageoutadapter.NewKVUsagePublisher(
			usageoutadapter.NewRedisKVStore(client),
			cfg.Redis.KeyPrefix,
			cfg.Redis.TTL(),
			logger.Named("publisher"),
		)
	}

	var packages usageout.PackageResolver
	if resolverUC != nil {
		packages = usageoutadapter.NewPackageResolverAdapter(resolverUC, cfg.Resolver.Locale)
		app.ResolverCLI = resolverinadapter.NewCLIHandler(resolverUC)
		app.ResolverEnabled = true
	}

	usageUC := usageusecase.NewInteractor(usageservice.NewPipelineService(
		clk,
		ids,
		usageoutadapter.NewSnapshotSourceAdapter(snapshotUC),
		packages,
		projector,
		publisher,
		usageservice.Settings{
			Options:             pipelineOptions(cfg.Pipeline),
			Location:            loc,
			MaxGap:              cfg.Pipeline.MaxGap(),
			Retention:           cfg.Pipeline.Retention(),
			SinceLastFullCharge: cfg.Pipeline.SinceLastFullCharge,
		},
		m,
		logger.Named("usage"),
	))

	anomalyUC := anomalyusecase.NewInteractor(anomalyservice.NewAnomalyService(
		anomalyoutadapter.NewFileEventSource(cfg.DataDir),
		anomalyoutadapter.NewFileDismissalStore(cfg.DataDir),
		logger.Named("anomaly"),
	))

	app.SnapshotCLI = snapshotinadapter.NewCLIHandler(snapshotUC)
	app.UsageCLI = usageinadapter.NewCLIHandler(usageUC)
	app.AnomalyCLI = anomalyinadapter.NewCLIHandler(anomalyUC)
	return app, nil
}

// Close releases the database handles and the redis client.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// newResolver returns a nil usecase when package lookups are disabled.
func newResolver(cfg config.ResolverConfig, m *metrics.Metrics, logger *zap.Logger) (resolverin.Usecase, error) {
	var backend resolverout.Backend
	var manifest *resolverdomain.Manifest
	switch cfg.Kind {
	case "none":
		return nil, nil
	case "plugin":
		manifest = &resolverdomain.Manifest{
			Binary: filepath.Clean(cfg.PluginBinary),
			SHA256: cfg.PluginSHA256,
			Env:    map[string]string{resolverdomain.InventoryEnv: cfg.InventoryPath},
		}
		backend = resolveroutadapter.NewGRPCBackend(*manifest)
	default:
		backend = resolveroutadapter.NewInventoryBackend(cfg.InventoryPath)
	}
	cache, err := resolverservice.NewCache(cfg.CacheSize, cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("new resolver cache: %w", err)
	}
	return resolverusecase.NewInteractor(resolverservice.NewResolverService(backend, cache, manifest, m, logger)), nil
}

func pipelineOptions(p config.PipelineConfig) usagedomain.Options {
	opts := usagedomain.DefaultOptions()
	opts.CurrentUserID = p.CurrentUserID
	opts.WorkProfileUserID = p.WorkProfileUserID
	opts.CombineSystemComponents = p.CombineSystemComponents
	opts.PurgeThresholdPct = p.PurgeThresholdPct
	opts.NeverPurge = usagedomain.NewPackageSet(p.NeverPurgePackages)
	opts.HideFromSummary = usagedomain.NewPackageSet(p.HideFromSummaryPackages)
	opts.HideBackgroundTime = usagedomain.NewPackageSet(p.HideBackgroundTimePackages)
	return opts
}
