package domain_test

import (
	"errors"
	"math"
	"testing"
	"time"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	timeline "batteryusage/internal/modules/timeline/domain"
	"batteryusage/internal/modules/usage/domain"
	apperrors "batteryusage/internal/platform/errors"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func ms(d time.Duration) int64 {
	return t0.Add(d).UnixMilli()
}

func durMs(d time.Duration) int64 {
	return d.Milliseconds()
}

func filler(at time.Duration, level int) snapshot.Snapshot {
	return snapshot.Snapshot{Timestamp: ms(at), BatteryLevel: level}
}

func app(at time.Duration, uid int64, pkg string, power float64) snapshot.Snapshot {
	return snapshot.Snapshot{
		Timestamp:    ms(at),
		BatteryLevel: 50,
		Consumer:     snapshot.App{UID: uid, PackageName: pkg},
		PowerMah:     power,
	}
}

func system(at time.Duration, drain int, power float64) snapshot.Snapshot {
	return snapshot.Snapshot{
		Timestamp:    ms(at),
		BatteryLevel: 50,
		Consumer:     snapshot.SystemComponent{DrainType: drain},
		PowerMah:     power,
	}
}

func historyOf(snaps ...snapshot.Snapshot) snapshot.History {
	h := snapshot.History{}
	for _, s := range snaps {
		h.Add(s)
	}
	return h
}

func newEngine(h snapshot.History, periods []snapshot.UsagePeriod, packages domain.Packages, opts domain.Options) *domain.Engine {
	return domain.NewEngine(timeline.NewSampler(h, time.UTC, 0), periods, packages, opts)
}

func diffHour(t *testing.T, engine *domain.Engine, mode domain.Mode) domain.DiffData {
	t.Helper()
	data, err := engine.Diff(ms(0), ms(time.Hour), mode)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	return data
}

func keys(entries []domain.DiffEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key())
	}
	return out
}

func TestDiffPercentagesSumToHundred(t *testing.T) {
	t.Parallel()
	h := historyOf(
		app(0, 10001, "com.a", 0), app(0, 10002, "com.b", 0), system(0, snapshot.DrainCPU, 0),
		app(time.Hour, 10001, "com.a", 30), app(time.Hour, 10002, "com.b", 10), system(time.Hour, snapshot.DrainCPU, 20),
	)
	data := diffHour(t, newEngine(h, nil, nil, domain.DefaultOptions()), domain.ModeFull)
	if data.TotalPower != 60 {
		t.Fatalf("expected total power 60, got %v", data.TotalPower)
	}
	if len(data.AppEntries) != 2 || len(data.SystemEntries) != 1 {
		t.Fatalf("unexpected split: %d apps, %d system", len(data.AppEntries), len(data.SystemEntries))
	}
	if sum := data.PercentSum(); math.Abs(sum-100) > 1e-9 {
		t.Fatalf("percentages should sum to 100, got %v", sum)
	}
	if data.AppEntries[0].Key() != "10001" || data.AppEntries[0].PercentOfTotal != 50 {
		t.Fatalf("largest consumer should sort first: %+v", data.AppEntries[0])
	}
}

func TestDiffClipsOvercountedUsage(t *testing.T) {
	t.Parallel()
	start := app(0, 10001, "com.a", 0)
	end := app(time.Hour, 10001, "com.a", 10)
	end.ForegroundMs = durMs(90 * time.Minute)
	end.BackgroundMs = durMs(30 * time.Minute)
	data := diffHour(t, newEngine(historyOf(start, end), nil, nil, domain.DefaultOptions()), domain.ModeFull)
	entry := data.AppEntries[0]
	if entry.ForegroundMs+entry.BackgroundMs != durMs(time.Hour) {
		t.Fatalf("clipped times must add up to the period, got %d + %d", entry.ForegroundMs, entry.BackgroundMs)
	}
	if entry.ForegroundMs != 3*entry.BackgroundMs {
		t.Fatalf("foreground/background ratio should stay 3:1, got %d:%d", entry.ForegroundMs, entry.BackgroundMs)
	}
	if entry.PowerMah != 5 {
		t.Fatalf("power should scale with the same ratio, got %v", entry.PowerMah)
	}
}

func TestDiffAccumulatesFromZeroBaseline(t *testing.T) {
	t.Parallel()
	h := historyOf(
		filler(0, 90),
		app(30*time.Minute, 10001, "com.late", 4),
		app(30*time.Minute, 10002, "com.reset", 10),
		app(0, 10002, "com.reset", 8),
		app(time.Hour, 10001, "com.late", 10),
		app(time.Hour, 10002, "com.reset", 3),
	)
	data := diffHour(t, newEngine(h, nil, nil, domain.DefaultOptions()), domain.ModeFull)
	got := map[string]float64{}
	for _, e := range data.Entries() {
		got[e.Key()] = e.PowerMah
	}
	if got["10001"] != 10 {
		t.Fatalf("late consumer should count from zero, got %v", got["10001"])
	}
	if got["10002"] != 2 {
		t.Fatalf("reset consumer should only count positive steps, got %v", got["10002"])
	}
	if _, ok := got[snapshot.FillerKey]; ok {
		t.Fatalf("filler must not appear in the output")
	}
}

func TestDiffExcludesFakeConsumers(t *testing.T) {
	t.Parallel()
	fakeStart := app(0, 0, snapshot.FakePackageName, 0)
	fakeEnd := app(time.Hour, 0, snapshot.FakePackageName, 3)
	h := historyOf(fakeStart, fakeEnd, app(0, 10001, "com.a", 0), app(time.Hour, 10001, "com.a", 1))
	data := diffHour(t, newEngine(h, nil, nil, domain.DefaultOptions()), domain.ModeFull)
	if len(data.AppEntries) != 1 || data.AppEntries[0].Key() != "10001" {
		t.Fatalf("fake package should be excluded, got %v", keys(data.AppEntries))
	}
	if data.AppEntries[0].PercentOfTotal != 100 {
		t.Fatalf("fake power must not count towards the total")
	}
}

func TestDiffClassifiesConsumers(t *testing.T) {
	t.Parallel()
	bStart := app(0, 10002, "com.b:remote", 0)
	bStart.Label = "B app"
	bEnd := app(time.Hour, 10002, "com.b:remote", 5)
	bEnd.Label = "B app"
	h := historyOf(
		app(0, 10001, "com.a", 0), bStart, app(0, snapshot.UIDRemovedApps, "", 0),
		app(0, 1000, "android", 0), system(0, snapshot.DrainWiFi, 0),
		app(time.Hour, 10001, "com.a", 5), bEnd, app(time.Hour, snapshot.UIDRemovedApps, "", 5),
		app(time.Hour, 1000, "android", 5), system(time.Hour, snapshot.DrainWiFi, 5),
	)
	packages := domain.Packages{"com.a": {Label: "Alpha", Installed: true}, "android": {Label: "Android System", Installed: true}}
	opts := domain.DefaultOptions()
	opts.CombineSystemComponents = true
	data := diffHour(t, newEngine(h, nil, packages, opts), domain.ModeFull)

	byKey := map[string]domain.DiffEntry{}
	for _, e := range data.Entries() {
		byKey[e.Key()] = e
	}
	if e := byKey["10001"]; e.IsSystemEntry || e.IsUninstalled || e.Label != "Alpha" {
		t.Fatalf("installed app misclassified: %+v", e)
	}
	if e := byKey["10002"]; e.IsSystemEntry || !e.IsUninstalled || e.Label != "B app" {
		t.Fatalf("unresolvable app should be uninstalled with its recorded label: %+v", e)
	}
	if e := byKey["-4"]; !e.IsSystemEntry || e.IsUninstalled || e.Label != "-4" {
		t.Fatalf("removed apps bucket should be a system entry: %+v", e)
	}
	if e := byKey["1000"]; !e.IsSystemEntry || e.Label != "Android System" {
		t.Fatalf("system uid should combine into system entries: %+v", e)
	}
	if e := byKey["S|11"]; !e.IsSystemEntry || e.Label != "wifi" {
		t.Fatalf("system component misclassified: %+v", e)
	}
	if len(data.AppEntries) != 2 || len(data.SystemEntries) != 3 {
		t.Fatalf("unexpected split: apps %v system %v", keys(data.AppEntries), keys(data.SystemEntries))
	}
}

func TestDiffPurge(t *testing.T) {
	t.Parallel()
	equal := historyOf(app(0, 10001, "com.a", 0), app(0, 10002, "com.b", 0), app(time.Hour, 10001, "com.a", 10), app(time.Hour, 10002, "com.b", 10))
	data := diffHour(t, newEngine(equal, nil, nil, domain.DefaultOptions()), domain.ModePurge)
	if len(data.AppEntries) != 2 {
		t.Fatalf("two apps at exactly 50%% should both survive, got %v", keys(data.AppEntries))
	}

	skewed := historyOf(app(0, 10001, "com.a", 0), app(0, 10002, "com.b", 0), app(time.Hour, 10001, "com.a", 70), app(time.Hour, 10002, "com.b", 30))
	purged := diffHour(t, newEngine(skewed, nil, nil, domain.DefaultOptions()), domain.ModePurge)
	if got := keys(purged.AppEntries); len(got) != 1 || got[0] != "10001" {
		t.Fatalf("app under the threshold should be purged, got %v", got)
	}
	if math.Abs(purged.AppEntries[0].PercentOfTotal-70) > 1e-9 || purged.TotalPower != 100 {
		t.Fatalf("purging must not renormalise: %+v total %v", purged.AppEntries[0], purged.TotalPower)
	}
	full := diffHour(t, newEngine(skewed, nil, nil, domain.DefaultOptions()), domain.ModeFull)
	if len(full.AppEntries) != 2 {
		t.Fatalf("full mode keeps every consumer, got %v", keys(full.AppEntries))
	}

	allow := domain.DefaultOptions()
	allow.NeverPurge = domain.NewPackageSet([]string{"com.b"})
	kept := diffHour(t, newEngine(skewed, nil, nil, allow), domain.ModePurge)
	if len(kept.AppEntries) != 2 {
		t.Fatalf("allow-listed package should survive purge, got %v", keys(kept.AppEntries))
	}

	hide := domain.DefaultOptions()
	hide.HideFromSummary = domain.NewPackageSet([]string{"com.a"})
	hidden := diffHour(t, newEngine(skewed, nil, nil, hide), domain.ModePurge)
	if len(hidden.AppEntries) != 0 {
		t.Fatalf("hidden package should be dropped in purge mode, got %v", keys(hidden.AppEntries))
	}
	if shown := diffHour(t, newEngine(skewed, nil, nil, hide), domain.ModeFull); len(shown.AppEntries) != 2 {
		t.Fatalf("hide list only applies to purge mode")
	}
}

func TestDiffReconcilesOtherUsers(t *testing.T) {
	t.Parallel()
	other := app(time.Hour, 1010001, "com.a", 5)
	other.Consumer = snapshot.App{UID: 1010001, UserID: 10, PackageName: "com.a"}
	other.ForegroundMs = durMs(10 * time.Minute)
	otherStart := other
	otherStart.Timestamp, otherStart.PowerMah, otherStart.ForegroundMs = ms(0), 0, 0
	work := app(time.Hour, 1110001, "com.work", 2)
	work.Consumer = snapshot.App{UID: 1110001, UserID: 11, PackageName: "com.work"}
	workStart := work
	workStart.Timestamp, workStart.PowerMah = ms(0), 0
	userEnd := snapshot.Snapshot{Timestamp: ms(time.Hour), BatteryLevel: 50, Consumer: snapshot.User{UserID: 10}, PowerMah: 1}
	userStart := userEnd
	userStart.Timestamp, userStart.PowerMah = ms(0), 0

	h := historyOf(app(0, 10001, "com.a", 0), app(time.Hour, 10001, "com.a", 10), other, otherStart, work, workStart, userEnd, userStart)
	opts := domain.DefaultOptions()
	opts.WorkProfileUserID = 11
	data := diffHour(t, newEngine(h, nil, nil, opts), domain.ModeFull)

	if got := keys(data.AppEntries); len(got) != 2 || got[0] != "10001" || got[1] != "1110001" {
		t.Fatalf("current user and work profile apps should stay, got %v", got)
	}
	if len(data.SystemEntries) != 1 {
		t.Fatalf("expected a single other users entry, got %v", keys(data.SystemEntries))
	}
	folded := data.SystemEntries[0]
	if folded.Key() != "U|-2147483648" || folded.PowerMah != 6 || folded.ForegroundMs != 0 || folded.Label != "Other users" {
		t.Fatalf("unexpected other users entry: %+v", folded)
	}
	if math.Abs(data.PercentSum()-100) > 1e-9 {
		t.Fatalf("folding must keep the total, got %v", data.PercentSum())
	}
}

func TestDiffAppliesScreenOnTime(t *testing.T) {
	t.Parallel()
	end := app(time.Hour, 10001, "com.a", 4)
	end.ForegroundMs = durMs(10 * time.Minute)
	end.BackgroundMs = durMs(45 * time.Minute)
	screen := system(time.Hour, snapshot.DrainScreen, 6)
	screen.ForegroundMs = durMs(55 * time.Minute)
	h := historyOf(app(0, 10001, "com.a", 0), end, system(0, snapshot.DrainScreen, 0), screen)
	periods := []snapshot.UsagePeriod{
		{PackageName: "com.a", StartMs: ms(10 * time.Minute), EndMs: ms(30 * time.Minute)},
		{PackageName: "com.a", StartMs: ms(20 * time.Minute), EndMs: ms(40 * time.Minute)},
		{PackageName: "com.b", StartMs: ms(50 * time.Minute), EndMs: ms(70 * time.Minute)},
		{UserID: 10, PackageName: "com.c", StartMs: ms(0), EndMs: ms(time.Hour)},
	}
	data := diffHour(t, newEngine(h, periods, nil, domain.DefaultOptions()), domain.ModeFull)
	if data.ScreenOnMs != durMs(40*time.Minute) {
		t.Fatalf("slot screen-on should be the union of current user periods, got %d", data.ScreenOnMs)
	}
	entry := data.AppEntries[0]
	if entry.ScreenOnMs != durMs(30*time.Minute) {
		t.Fatalf("overlapping periods count once, got %d", entry.ScreenOnMs)
	}
	if entry.BackgroundMs != durMs(30*time.Minute) {
		t.Fatalf("background time should be capped by the time left after screen-on, got %d", entry.BackgroundMs)
	}
	if got := data.SystemEntries[0]; got.ForegroundMs != durMs(40*time.Minute) {
		t.Fatalf("screen component should report slot screen-on time, got %d", got.ForegroundMs)
	}
}

func TestDiffHidesBackgroundTime(t *testing.T) {
	t.Parallel()
	end := app(time.Hour, 10001, "com.music", 4)
	end.BackgroundMs = durMs(20 * time.Minute)
	opts := domain.DefaultOptions()
	opts.HideBackgroundTime = domain.NewPackageSet([]string{"com.music"})
	data := diffHour(t, newEngine(historyOf(app(0, 10001, "com.music", 0), end), nil, nil, opts), domain.ModeFull)
	if data.AppEntries[0].BackgroundMs != 0 {
		t.Fatalf("background time should be hidden, got %d", data.AppEntries[0].BackgroundMs)
	}
}

func TestDiffClockSkew(t *testing.T) {
	t.Parallel()
	engine := newEngine(historyOf(filler(0, 90), filler(time.Hour, 80)), nil, nil, domain.DefaultOptions())
	if _, err := engine.Diff(ms(time.Hour), ms(time.Hour), domain.ModeFull); !errors.Is(err, apperrors.ErrClockSkew) {
		t.Fatalf("zero span should be clock skew, got %v", err)
	}
	if _, err := engine.Diff(ms(time.Hour), ms(0), domain.ModeFull); !errors.Is(err, apperrors.ErrClockSkew) {
		t.Fatalf("negative span should be clock skew, got %v", err)
	}
}

func TestDiffUnknownBoundaryYieldsNoEntries(t *testing.T) {
	t.Parallel()
	h := historyOf(app(0, 10001, "com.a", 0), app(30*time.Hour, 10001, "com.a", 50))
	data, err := newEngine(h, nil, nil, domain.DefaultOptions()).Diff(ms(time.Hour), ms(2*time.Hour), domain.ModeFull)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !data.IsEmpty() || data.StartLevel != nil || data.EndLevel != nil {
		t.Fatalf("gap period should have no entries and unknown levels: %+v", data)
	}
}

func TestDiffSortTieBreak(t *testing.T) {
	t.Parallel()
	h := historyOf(
		app(0, 10002, "com.b", 0), app(0, 10001, "com.a", 0), app(0, 10003, "com.c", 0),
		app(time.Hour, 10002, "com.b", 5), app(time.Hour, 10001, "com.a", 5), app(time.Hour, 10003, "com.c", 9),
	)
	data := diffHour(t, newEngine(h, nil, nil, domain.DefaultOptions()), domain.ModeFull)
	got := keys(data.AppEntries)
	if len(got) != 3 || got[0] != "10003" || got[1] != "10001" || got[2] != "10002" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestSetTotalPowerZero(t *testing.T) {
	t.Parallel()
	data := domain.DiffData{AppEntries: []domain.DiffEntry{{Consumer: snapshot.App{UID: 1}, PowerMah: 0}}}
	data.SetTotalPower(0)
	if data.AppEntries[0].PercentOfTotal != 0 {
		t.Fatalf("zero total should give zero percent")
	}
	data.AppEntries[0].PowerMah = 2
	data.SetTotalPower(8)
	if data.AppEntries[0].PercentOfTotal != 25 {
		t.Fatalf("expected 25%%, got %v", data.AppEntries[0].PercentOfTotal)
	}
}
