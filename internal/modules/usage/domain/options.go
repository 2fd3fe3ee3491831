package domain

import (
	"strings"

	snapshot "batteryusage/internal/modules/snapshot/domain"
)

// Mode selects whether low-share consumers are purged from the output.
type Mode int

const (
	ModeFull Mode = iota
	ModePurge
)

func (m Mode) String() string {
	if m == ModePurge {
		return "purge"
	}
	return "full"
}

const DefaultPurgeThresholdPct = 50

// NoUser marks an unset work profile.
const NoUser int64 = -1

type PackageSet map[string]struct{}

func NewPackageSet(names []string) PackageSet {
	set := PackageSet{}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			set[snapshot.BasePackage(name)] = struct{}{}
		}
	}
	return set
}

func (s PackageSet) Has(name string) bool {
	if name == "" {
		return false
	}
	_, ok := s[name]
	return ok
}

type Options struct {
	CurrentUserID           int64
	WorkProfileUserID       int64
	CombineSystemComponents bool
	PurgeThresholdPct       float64
	NeverPurge              PackageSet
	HideFromSummary         PackageSet
	HideBackgroundTime      PackageSet
}

func DefaultOptions() Options {
	return Options{
		WorkProfileUserID: NoUser,
		PurgeThresholdPct: DefaultPurgeThresholdPct,
	}
}

// Package is what the package manager knows about an installed app.
type Package struct {
	Label     string
	Installed bool
}

// Packages maps base package names to their lookup result. A nil map
// disables uninstalled detection.
type Packages map[string]Package
