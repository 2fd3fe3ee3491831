package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	snapshot "batteryusage/internal/modules/snapshot/domain"
)

var (
	ErrChecksumMismatch = errors.New("resolver plugin checksum mismatch")
	ErrBackendTimeout   = errors.New("resolver backend timeout")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// PackageInfo is what the package catalogue knows about one base package.
type PackageInfo struct {
	PackageName string `json:"package_name" yaml:"name"`
	Label       string `json:"label" yaml:"label"`
	Installed   bool   `json:"installed" yaml:"installed"`
}

type BackendInfo struct {
	Name     string
	Version  string
	Packages int
}

// Manifest pins the external resolver binary that the plugin backend launches.
type Manifest struct {
	Binary string            `json:"binary"`
	SHA256 string            `json:"sha256"`
	Env    map[string]string `json:"env,omitempty"`
}

// InventoryEnv names the variable the bundled resolver plugin reads its
// catalogue path from.
const InventoryEnv = "BATTERYUSAGE_INVENTORY"

func (m Manifest) Validate() error {
	if m.Binary == "" {
		return fmt.Errorf("resolver binary path is required")
	}
	if m.SHA256 != "" && !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("resolver sha256 must be lowercase 64-char hex")
	}
	return nil
}

// NormalizePackages maps names to their base package, dropping blanks and
// duplicates. The result is sorted.
func NormalizePackages(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		base := snapshot.BasePackage(strings.TrimSpace(name))
		if base == "" || base == snapshot.FakePackageName {
			continue
		}
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, base)
	}
	sort.Strings(out)
	return out
}

// LocalizedLabel picks the label for locale, falling back to the language
// part and then to the default label.
func LocalizedLabel(defaultLabel string, labels map[string]string, locale string) string {
	if locale != "" {
		if label, ok := labels[locale]; ok && label != "" {
			return label
		}
		if lang, _, found := strings.Cut(locale, "-"); found {
			if label, ok := labels[lang]; ok && label != "" {
				return label
			}
		}
	}
	return defaultLabel
}
