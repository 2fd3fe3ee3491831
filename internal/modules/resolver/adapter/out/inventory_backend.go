package out

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"batteryusage/internal/modules/resolver/domain"

	"gopkg.in/yaml.v3"
)

type inventoryFile struct {
	Version  string             `yaml:"version"`
	Packages []inventoryPackage `yaml:"packages"`
}

type inventoryPackage struct {
	Name      string            `yaml:"name"`
	Label     string            `yaml:"label"`
	Labels    map[string]string `yaml:"labels"`
	Installed *bool             `yaml:"installed"`
}

// InventoryBackend resolves packages from a YAML catalogue on disk. A missing
// file is an empty catalogue.
type InventoryBackend struct {
	path string

	once     sync.Once
	loadErr  error
	version  string
	packages map[string]inventoryPackage
}

func NewInventoryBackend(path string) *InventoryBackend {
	return &InventoryBackend{path: path}
}

func (b *InventoryBackend) load() error {
	b.once.Do(func() {
		b.packages = map[string]inventoryPackage{}
		raw, err := os.ReadFile(b.path)
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			b.loadErr = fmt.Errorf("read package inventory: %w", err)
			return
		}
		file := inventoryFile{}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			b.loadErr = fmt.Errorf("decode package inventory: %w", err)
			return
		}
		b.version = file.Version
		for _, pkg := range file.Packages {
			name := strings.TrimSpace(pkg.Name)
			if name == "" {
				continue
			}
			b.packages[name] = pkg
		}
	})
	return b.loadErr
}

func (b *InventoryBackend) Describe(_ context.Context) (domain.BackendInfo, error) {
	if err := b.load(); err != nil {
		return domain.BackendInfo{}, err
	}
	return domain.BackendInfo{Name: "inventory", Version: b.version, Packages: len(b.packages)}, nil
}

func (b *InventoryBackend) Resolve(ctx context.Context, packageNames []string, locale string) (map[string]domain.PackageInfo, error) {
	if err := b.load(); err != nil {
		return nil, err
	}
	out := make(map[string]domain.PackageInfo, len(packageNames))
	for _, name := range packageNames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkg, ok := b.packages[name]
		if !ok {
			continue
		}
		installed := true
		if pkg.Installed != nil {
			installed = *pkg.Installed
		}
		out[name] = domain.PackageInfo{
			PackageName: name,
			Label:       domain.LocalizedLabel(pkg.Label, pkg.Labels, locale),
			Installed:   installed,
		}
	}
	return out, nil
}
