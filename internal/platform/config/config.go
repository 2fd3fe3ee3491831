package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "config.yaml"

type Config struct {
	DataDir     string         `yaml:"-"`
	DBPath      string         `yaml:"db_path"`
	Timezone    string         `yaml:"timezone"`
	MetricsFile string         `yaml:"metrics_file"`
	Log         LogConfig      `yaml:"log"`
	Pipeline    PipelineConfig `yaml:"pipeline"`
	Resolver    ResolverConfig `yaml:"resolver"`
	Redis       RedisConfig    `yaml:"redis"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PipelineConfig is fixed for the lifetime of one pipeline instance.
type PipelineConfig struct {
	PurgeThresholdPct          float64  `yaml:"purge_threshold_pct"`
	NeverPurgePackages         []string `yaml:"never_purge_packages"`
	HideFromSummaryPackages    []string `yaml:"hide_from_summary_packages"`
	HideBackgroundTimePackages []string `yaml:"hide_background_time_packages"`
	CurrentUserID              int64    `yaml:"current_user_id"`
	WorkProfileUserID          int64    `yaml:"work_profile_user_id"`
	CombineSystemComponents    bool     `yaml:"combine_system_components"`
	RetentionDays              int      `yaml:"retention_days"`
	MaxGapHours                int      `yaml:"max_gap_hours"`
	SinceLastFullCharge        bool     `yaml:"since_last_full_charge"`
}

type ResolverConfig struct {
	Kind          string `yaml:"kind"`
	InventoryPath string `yaml:"inventory_path"`
	PluginBinary  string `yaml:"plugin_binary"`
	PluginSHA256  string `yaml:"plugin_sha256"`
	CacheSize     int    `yaml:"cache_size"`
	Locale        string `yaml:"locale"`
}

type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	KeyPrefix  string `yaml:"key_prefix"`
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	cfg := defaults(dataDir)
	raw, err := os.ReadFile(filepath.Join(dataDir, fileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults(dataDir string) Config {
	return Config{
		DataDir: dataDir,
		Log:     LogConfig{Level: "info", Format: "json"},
		Pipeline: PipelineConfig{
			PurgeThresholdPct:   50,
			WorkProfileUserID:   -1,
			RetentionDays:       9,
			MaxGapHours:         24,
			SinceLastFullCharge: true,
		},
		Resolver: ResolverConfig{Kind: "static", CacheSize: 512, Locale: "en-US"},
		Redis:    RedisConfig{TTLSeconds: 3600, KeyPrefix: "batteryusage"},
	}
}

func (c *Config) resolvePaths() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, ".batteryusage", "batteryusage.db")
	} else if !filepath.IsAbs(c.DBPath) {
		c.DBPath = filepath.Join(c.DataDir, c.DBPath)
	}
	if c.Resolver.InventoryPath == "" {
		c.Resolver.InventoryPath = filepath.Join(c.DataDir, "packages.yaml")
	} else if !filepath.IsAbs(c.Resolver.InventoryPath) {
		c.Resolver.InventoryPath = filepath.Join(c.DataDir, c.Resolver.InventoryPath)
	}
	if c.Resolver.PluginBinary != "" && !filepath.IsAbs(c.Resolver.PluginBinary) {
		c.Resolver.PluginBinary = filepath.Clean(filepath.Join(c.DataDir, c.Resolver.PluginBinary))
	}
}

func (c Config) Validate() error {
	if c.Pipeline.PurgeThresholdPct < 0 || c.Pipeline.PurgeThresholdPct > 100 {
		return fmt.Errorf("purge threshold must be within 0..100, got %v", c.Pipeline.PurgeThresholdPct)
	}
	if c.Pipeline.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive")
	}
	if c.Pipeline.MaxGapHours <= 0 {
		return fmt.Errorf("max gap hours must be positive")
	}
	switch c.Resolver.Kind {
	case "static", "none":
	case "plugin":
		if c.Resolver.PluginBinary == "" {
			return fmt.Errorf("resolver plugin binary is required for plugin resolver")
		}
	default:
		return fmt.Errorf("unknown resolver kind: %s", c.Resolver.Kind)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns nil when no timezone is configured so callers can fall
// back to the zone recorded with the snapshots.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (p PipelineConfig) Retention() time.Duration {
	return time.Duration(p.RetentionDays) * 24 * time.Hour
}

func (p PipelineConfig) MaxGap() time.Duration {
	return time.Duration(p.MaxGapHours) * time.Hour
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

func (r RedisConfig) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}
