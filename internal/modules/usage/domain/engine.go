package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	timeline "batteryusage/internal/modules/timeline/domain"
	apperrors "batteryusage/internal/platform/errors"
)

const otherUsersLabel = "Other users"

// Engine computes per-consumer usage between two instants of one history.
// It holds no mutable state; every Diff call is independent.
type Engine struct {
	sampler  *timeline.Sampler
	screen   screenUsage
	packages Packages
	opts     Options
}

func NewEngine(sampler *timeline.Sampler, periods []snapshot.UsagePeriod, packages Packages, opts Options) *Engine {
	if opts.NeverPurge == nil {
		opts.NeverPurge = PackageSet{}
	}
	if opts.HideFromSummary == nil {
		opts.HideFromSummary = PackageSet{}
	}
	if opts.HideBackgroundTime == nil {
		opts.HideBackgroundTime = PackageSet{}
	}
	return &Engine{sampler: sampler, screen: newScreenUsage(periods), packages: packages, opts: opts}
}

// Diff returns the usage between lower and upper. A period whose boundary
// state is unknown yields a DiffData without entries.
func (e *Engine) Diff(lower, upper int64, mode Mode) (DiffData, error) {
	span := upper - lower
	if span <= 0 {
		return DiffData{}, fmt.Errorf("%w: period [%d, %d] has span %d", apperrors.ErrClockSkew, lower, upper, span)
	}
	data := DiffData{
		StartTimestamp: lower,
		EndTimestamp:   upper,
		StartLevel:     e.sampler.LevelAt(lower),
		EndLevel:       e.sampler.LevelAt(upper),
	}
	frames := e.frames(lower, upper)
	if frames == nil {
		return data, nil
	}
	if !e.screen.empty() {
		data.ScreenOnMs = e.screen.user(e.opts.CurrentUserID, lower, upper)
	}

	deltas := accumulate(frames)
	entries := make([]DiffEntry, 0, len(deltas))
	for _, d := range deltas {
		if excluded(d.sample) || !d.hasUsage() {
			continue
		}
		entries = append(entries, e.newEntry(d, lower, upper, data.ScreenOnMs))
	}
	entries = e.reconcileUsers(entries)

	total := 0.0
	for _, entry := range entries {
		if entry.IsSystemEntry {
			data.SystemEntries = append(data.SystemEntries, entry)
		} else {
			data.AppEntries = append(data.AppEntries, entry)
		}
		total += entry.PowerMah
	}
	data.SetTotalPower(total)
	if mode == ModePurge {
		data.AppEntries = e.purge(data.AppEntries)
		data.SystemEntries = e.purge(data.SystemEntries)
	}
	data.sort()
	return data, nil
}

// frames lists the boundary frames and every raw frame in between, or nil
// when either boundary is unknown.
func (e *Engine) frames(lower, upper int64) []snapshot.Frame {
	first := e.sampler.FrameAt(lower)
	last := e.sampler.FrameAt(upper)
	if len(first) == 0 || len(last) == 0 {
		return nil
	}
	inside := e.sampler.Between(lower, upper)
	out := make([]snapshot.Frame, 0, len(inside)+2)
	out = append(out, first)
	for _, ts := range inside {
		frame, _ := e.sampler.Raw(ts)
		out = append(out, frame)
	}
	return append(out, last)
}

type delta struct {
	sample              snapshot.Snapshot
	powerMah            float64
	foregroundMs        int64
	foregroundServiceMs int64
	backgroundMs        int64
}

func (d delta) hasUsage() bool {
	return d.powerMah != 0 || d.foregroundMs != 0 || d.foregroundServiceMs != 0 || d.backgroundMs != 0
}

// accumulate sums the positive step between consecutive frames per consumer,
// so a consumer absent from a frame counts from zero when it reappears.
// Results are ordered by consumer key.
func accumulate(frames []snapshot.Frame) []delta {
	byKey := map[string]*delta{}
	keys := []string{}
	for _, frame := range frames {
		for _, key := range frame.Keys() {
			if _, ok := byKey[key]; !ok {
				byKey[key] = &delta{sample: frame[key]}
				keys = append(keys, key)
			}
		}
	}
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1], frames[i]
		for key, c := range cur {
			p := prev[key]
			d := byKey[key]
			d.powerMah += positive(c.PowerMah - p.PowerMah)
			d.foregroundMs += positiveMs(c.ForegroundMs - p.ForegroundMs)
			d.foregroundServiceMs += positiveMs(c.ForegroundServiceMs - p.ForegroundServiceMs)
			d.backgroundMs += positiveMs(c.BackgroundMs - p.BackgroundMs)
		}
	}
	sort.Strings(keys)
	out := make([]delta, 0, len(keys))
	for _, key := range keys {
		out = append(out, *byKey[key])
	}
	return out
}

func positive(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

func positiveMs(v int64) int64 {
	if v > 0 {
		return v
	}
	return 0
}

// excluded reports fillers and placeholder app consumers. Apps without a
// package name, like the removed-apps bucket, are real consumers.
func excluded(s snapshot.Snapshot) bool {
	switch c := s.Consumer.(type) {
	case nil:
		return true
	case snapshot.App:
		return c.PackageName == snapshot.FakePackageName
	case snapshot.SystemComponent, snapshot.User:
		return false
	default:
		panic(fmt.Sprintf("unhandled consumer type %T", s.Consumer))
	}
}

func (e *Engine) newEntry(d delta, lower, upper, slotScreenOnMs int64) DiffEntry {
	span := upper - lower
	fg, fgs, bg, power := d.foregroundMs, d.foregroundServiceMs, d.backgroundMs, d.powerMah

	// Cumulative counters can double count across process restarts; scale the
	// consumer back to the period length keeping its foreground share.
	if total := fg + bg; total > span {
		ratio := float64(span) / float64(total)
		fg = int64(math.Round(float64(fg) * ratio))
		bg = span - fg
		fgs = int64(math.Round(float64(fgs) * ratio))
		power *= ratio
	}

	entry := DiffEntry{
		Consumer:            d.sample.Consumer,
		ForegroundMs:        fg,
		ForegroundServiceMs: fgs,
		BackgroundMs:        bg,
		PowerMah:            power,
		IsHidden:            d.sample.IsHidden,
	}

	switch c := d.sample.Consumer.(type) {
	case snapshot.App:
		pkg := c.BasePackage()
		if !e.screen.empty() {
			entry.ScreenOnMs = e.screen.app(pkg, c.UserID, lower, upper)
			entry.BackgroundMs = clampMs(entry.BackgroundMs, span-entry.ScreenOnMs)
			entry.ForegroundServiceMs = clampMs(entry.ForegroundServiceMs, span-entry.ScreenOnMs-entry.BackgroundMs)
		}
		if e.opts.HideBackgroundTime.Has(pkg) {
			entry.BackgroundMs = 0
		}
		entry.IsSystemEntry = e.isSystemApp(c, d.sample.IsHidden)
		entry.Label, entry.IsUninstalled = e.resolveApp(c, d.sample.Label, entry.IsSystemEntry)
	case snapshot.SystemComponent:
		entry.IsSystemEntry = true
		entry.Label = c.Name()
		if c.DrainType == snapshot.DrainScreen && !e.screen.empty() {
			entry.ForegroundMs = slotScreenOnMs
			entry.ScreenOnMs = slotScreenOnMs
		}
	case snapshot.User:
		entry.IsSystemEntry = true
		entry.Label = userLabel(c.UserID)
	default:
		panic(fmt.Sprintf("unhandled consumer type %T", d.sample.Consumer))
	}
	return entry
}

func clampMs(v, limit int64) int64 {
	if limit < 0 {
		limit = 0
	}
	return min(v, limit)
}

func (e *Engine) isSystemApp(app snapshot.App, hidden bool) bool {
	switch {
	case hidden:
		return true
	case app.UID == snapshot.UIDRemovedApps, app.UID == snapshot.UIDTethering:
		return true
	case e.opts.CombineSystemComponents && app.IsSystemUID():
		return true
	default:
		return false
	}
}

// resolveApp falls back to the recorded label, then the package name, then
// the uid when the package manager cannot resolve the app.
func (e *Engine) resolveApp(app snapshot.App, recorded string, system bool) (string, bool) {
	pkg := app.BasePackage()
	if e.packages != nil {
		if info, ok := e.packages[pkg]; ok && info.Installed {
			if info.Label != "" {
				return info.Label, false
			}
			return fallbackLabel(app, recorded), false
		}
	}
	uninstalled := e.packages != nil && !system
	return fallbackLabel(app, recorded), uninstalled
}

func fallbackLabel(app snapshot.App, recorded string) string {
	switch {
	case recorded != "":
		return recorded
	case app.PackageName != "":
		return app.BasePackage()
	default:
		return strconv.FormatInt(app.UID, 10)
	}
}

func userLabel(userID int64) string {
	if userID == snapshot.UIDOtherUsers {
		return otherUsersLabel
	}
	return "User " + strconv.FormatInt(userID, 10)
}

// reconcileUsers folds app and user entries that belong to neither the
// current user nor its work profile into one "other users" entry. Their
// usage times are not meaningful to the current user and are dropped.
func (e *Engine) reconcileUsers(entries []DiffEntry) []DiffEntry {
	out := make([]DiffEntry, 0, len(entries))
	other := DiffEntry{
		Consumer:      snapshot.User{UserID: snapshot.UIDOtherUsers},
		Label:         otherUsersLabel,
		IsSystemEntry: true,
	}
	folded := 0
	for _, entry := range entries {
		user, ok := snapshot.ConsumerUserID(entry.Consumer)
		if !ok || e.isLocalUser(user) {
			out = append(out, entry)
			continue
		}
		other.PowerMah += entry.PowerMah
		folded++
	}
	if folded > 0 {
		out = append(out, other)
	}
	return out
}

func (e *Engine) isLocalUser(user int64) bool {
	return user == e.opts.CurrentUserID || (e.opts.WorkProfileUserID != NoUser && user == e.opts.WorkProfileUserID)
}

// purge keeps entries at or above the threshold and allow-listed packages;
// packages hidden from summaries never survive.
func (e *Engine) purge(entries []DiffEntry) []DiffEntry {
	out := entries[:0]
	for _, entry := range entries {
		pkg := entry.PackageName()
		if e.opts.HideFromSummary.Has(pkg) {
			continue
		}
		if entry.PercentOfTotal < e.opts.PurgeThresholdPct && !e.opts.NeverPurge.Has(pkg) {
			continue
		}
		out = append(out, entry)
	}
	return out
}
