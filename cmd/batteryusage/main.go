package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"batteryusage/internal/bootstrap"
	snapshotdto "batteryusage/internal/modules/snapshot/dto"
	usagedto "batteryusage/internal/modules/usage/dto"
	"batteryusage/internal/platform/config"
	"batteryusage/internal/platform/logging"
)

const timeLayout = "2006-01-02 15:04"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	dataDir     string
	logLevel    string
	logFormat   string
	metricsFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "batteryusage",
		Short:         "Battery usage history and per-app breakdown",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", ".", "directory holding config.yaml and the snapshot database")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override: debug|info|warn|error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format override: json|console")
	root.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "write prometheus textfile metrics on exit")

	root.AddCommand(newIngestCmd(opts))
	root.AddCommand(newSnapshotsCmd(opts))
	root.AddCommand(newTimelineCmd(opts))
	root.AddCommand(newUsageCmd(opts))
	root.AddCommand(newResolverCmd(opts))
	root.AddCommand(newAnomalyCmd(opts))
	return root
}

// withApp builds the application for one command, runs fn and releases
// everything afterwards. Metrics are flushed even when fn fails.
func withApp(opts *rootOptions, fn func(ctx context.Context, app *bootstrap.App) error) (err error) {
	cfg, err := config.New(opts.dataDir)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}
	if opts.metricsFile != "" {
		cfg.MetricsFile = opts.metricsFile
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if writeErr := app.Metrics.WriteTextfile(cfg.MetricsFile); writeErr != nil {
			logger.Warn("write metrics textfile", zap.Error(writeErr))
		}
		if closeErr := app.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, app)
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	ingest := &cobra.Command{Use: "ingest", Short: "Ingest device records"}

	ingest.AddCommand(&cobra.Command{
		Use:   "snapshots <path>",
		Short: "Ingest battery history snapshots from a JSON lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SnapshotCLI.IngestSnapshots(ctx, args[0])
				if err != nil {
					return err
				}
				printIngest(cmd.OutOrStdout(), "snapshots", out)
				return nil
			})
		},
	})

	ingest.AddCommand(&cobra.Command{
		Use:   "usage <path>",
		Short: "Ingest foreground usage periods from a JSON lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SnapshotCLI.IngestUsagePeriods(ctx, args[0])
				if err != nil {
					return err
				}
				printIngest(cmd.OutOrStdout(), "usage periods", out)
				return nil
			})
		},
	})
	return ingest
}

func printIngest(w io.Writer, what string, out snapshotdto.IngestOutput) {
	_, _ = fmt.Fprintf(w, "ingested %s: read=%d stored=%d dropped=%d\n", what, out.Read, out.Stored, out.Dropped)
}

func newSnapshotsCmd(opts *rootOptions) *cobra.Command {
	snapshots := &cobra.Command{Use: "snapshots", Short: "Snapshot store maintenance"}

	var retention time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots and usage periods older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				window := retention
				if window == 0 {
					window = app.Config.Pipeline.Retention()
				}
				out, err := app.SnapshotCLI.Prune(ctx, snapshotdto.PruneInput{Retention: window})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pruned before %s: snapshots=%d usage_periods=%d\n",
					time.UnixMilli(out.Cutoff).UTC().Format(time.RFC3339), out.Snapshots, out.UsagePeriods)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&retention, "retention", 0, "retention window (defaults to pipeline.retention_days)")
	snapshots.AddCommand(prune)

	snapshots.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show snapshot store counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.SnapshotCLI.Stats(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "snapshots: %d\ntimestamps: %d\nusage_periods: %d\n", out.Snapshots, out.Timestamps, out.UsagePeriods)
				_, _ = fmt.Fprintf(w, "first: %s\nlast: %s\nlast_full_charge: %s\n", formatTime(out.First), formatTime(out.Last), formatTime(out.LastFullCharge))
				return nil
			})
		},
	})
	return snapshots
}

func newTimelineCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Show the day and hour boundaries of the current history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.UsageCLI.Timeline(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "location=%s start=%s end=%s\n", out.Location, out.Start.Format(timeLayout), out.End.Format(timeLayout))
				for _, day := range out.Days {
					_, _ = fmt.Fprintf(w, "day %d %s\n", day.Index, day.Label)
					for _, bp := range day.Hours {
						_, _ = fmt.Fprintf(w, "  %s level=%s\n", bp.Time.Format(timeLayout), formatLevel(bp.Level))
					}
				}
				return nil
			})
		},
	}
}

func newUsageCmd(opts *rootOptions) *cobra.Command {
	usage := &cobra.Command{Use: "usage", Short: "Battery usage breakdown"}

	var purge bool
	run := &cobra.Command{
		Use:   "run",
		Short: "Compute and store the usage breakdown for every period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.UsageCLI.Run(ctx, purge)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "run=%s mode=%s days=%d periods=%d range=%s..%s\n",
					out.RunID, out.Mode, out.Days, out.Periods, out.Start.Format(timeLayout), out.End.Format(timeLayout))
				for _, ref := range out.Skipped {
					_, _ = fmt.Fprintf(w, "skipped day=%d hour=%d\n", ref.Day, ref.Hour)
				}
				printSlot(w, out.Total)
				return nil
			})
		},
	}
	run.Flags().BoolVar(&purge, "purge", false, "drop low-share consumers from the output")
	usage.AddCommand(run)

	var day, hour int
	var fromCache bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show one period of the latest run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.UsageCLI.Show(ctx, day, hour, fromCache)
				if err != nil {
					return err
				}
				printSlot(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	show.Flags().IntVar(&day, "day", usagedto.All, "day index, -1 for all days")
	show.Flags().IntVar(&hour, "hour", usagedto.All, "hour slot index, -1 for the whole day")
	show.Flags().BoolVar(&fromCache, "from-cache", false, "read from the redis cache instead of the database")
	usage.AddCommand(show)

	var window time.Duration
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Summarise usage over a trailing window without storing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.UsageCLI.Summary(ctx, window)
				if err != nil {
					return err
				}
				printSlot(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
	summary.Flags().DurationVar(&window, "window", 0, "trailing window (defaults to the whole history)")
	usage.AddCommand(summary)
	return usage
}

func printSlot(w io.Writer, slot usagedto.SlotOutput) {
	_, _ = fmt.Fprintf(w, "%s level=%s->%s screen_on=%s total=%.2fmAh\n",
		slot.Label, formatLevel(slot.StartLevel), formatLevel(slot.EndLevel),
		time.Duration(slot.ScreenOnMs)*time.Millisecond, slot.TotalPower)
	if len(slot.Entries) == 0 {
		_, _ = fmt.Fprintln(w, "no usage")
		return
	}
	for _, e := range slot.Entries {
		flags := make([]string, 0, 3)
		if e.IsSystemEntry {
			flags = append(flags, "system")
		}
		if e.IsUninstalled {
			flags = append(flags, "uninstalled")
		}
		if e.IsHidden {
			flags = append(flags, "hidden")
		}
		_, _ = fmt.Fprintf(w, "%6.2f%% %8.2fmAh %-10s %s fg=%s bg=%s",
			e.PercentOfTotal, e.PowerMah, e.Kind, e.Label,
			time.Duration(e.ForegroundMs)*time.Millisecond, time.Duration(e.BackgroundMs)*time.Millisecond)
		if len(flags) > 0 {
			_, _ = fmt.Fprintf(w, " [%s]", strings.Join(flags, ","))
		}
		_, _ = fmt.Fprintln(w)
	}
}

func newResolverCmd(opts *rootOptions) *cobra.Command {
	resolver := &cobra.Command{Use: "resolver", Short: "Package label resolver"}

	var locale string
	lookup := &cobra.Command{
		Use:   "lookup <package>...",
		Short: "Resolve package labels and install state",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.ResolverCLI.Lookup(ctx, args, locale)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if out.Degraded {
					_, _ = fmt.Fprintln(w, "warning: resolver backend unavailable, results are incomplete")
				}
				for _, p := range out.Packages {
					_, _ = fmt.Fprintf(w, "%s label=%q installed=%t resolved=%t cached=%t\n", p.PackageName, p.Label, p.Installed, p.Resolved, p.Cached)
				}
				return nil
			})
		},
	}
	lookup.Flags().StringVar(&locale, "locale", "", "label locale (defaults to resolver.locale)")
	resolver.AddCommand(lookup)

	resolver.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Check the resolver backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withResolver(opts, func(ctx context.Context, app *bootstrap.App) error {
				r, err := app.ResolverCLI.Doctor(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "%s@%s packages=%d cached=%d checksum=%t binary=%t lifecycle=%t",
					r.Backend, r.Version, r.Packages, r.CachedEntries, r.ChecksumValid, r.BinaryReachable, r.LifecycleOK)
				if r.Error != "" {
					_, _ = fmt.Fprintf(w, " error=%q", r.Error)
				}
				_, _ = fmt.Fprintln(w)
				return nil
			})
		},
	})

	resolver.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop cached package lookups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withResolver(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.ResolverCLI.Clear(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "resolver cache cleared")
				return nil
			})
		},
	})
	return resolver
}

func withResolver(opts *rootOptions, fn func(ctx context.Context, app *bootstrap.App) error) error {
	return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
		if !app.ResolverEnabled {
			return fmt.Errorf("resolver is disabled (resolver.kind: none)")
		}
		return fn(ctx, app)
	})
}

func newAnomalyCmd(opts *rootOptions) *cobra.Command {
	anomaly := &cobra.Command{Use: "anomaly", Short: "Power anomaly hints"}

	anomaly.AddCommand(&cobra.Command{
		Use:   "top",
		Short: "Show the highest scoring anomaly that is not dismissed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				out, err := app.AnomalyCLI.Top(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if !out.Found {
					_, _ = fmt.Fprintf(w, "no anomalies (candidates=%d dismissed=%d)\n", out.Candidate, out.Dismissed)
					return nil
				}
				e := out.Event
				_, _ = fmt.Fprintf(w, "%s kind=%s score=%.2f", e.Key, e.Kind, e.Score)
				if e.PackageName != "" {
					_, _ = fmt.Fprintf(w, " package=%s", e.PackageName)
				}
				if e.EntryKey != "" {
					_, _ = fmt.Fprintf(w, " entry=%s", e.EntryKey)
				}
				_, _ = fmt.Fprintln(w)
				if e.Hint != "" {
					_, _ = fmt.Fprintln(w, e.Hint)
				}
				return nil
			})
		},
	})

	anomaly.AddCommand(&cobra.Command{
		Use:   "dismiss <key>",
		Short: "Hide an anomaly until reset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.AnomalyCLI.Dismiss(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dismissed %s\n", args[0])
				return nil
			})
		},
	})

	anomaly.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Forget every dismissed anomaly",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.AnomalyCLI.Reset(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "dismissed anomalies cleared")
				return nil
			})
		},
	})
	return anomaly
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func formatLevel(level *int) string {
	if level == nil {
		return "?"
	}
	return fmt.Sprintf("%d%%", *level)
}
