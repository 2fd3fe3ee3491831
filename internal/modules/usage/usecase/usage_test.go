package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	"batteryusage/internal/modules/usage/domain"
	"batteryusage/internal/modules/usage/dto"
	usagein "batteryusage/internal/modules/usage/port/in"
	usageout "batteryusage/internal/modules/usage/port/out"
	"batteryusage/internal/modules/usage/service"
	"batteryusage/internal/modules/usage/usecase"
	"batteryusage/internal/platform/clock"
	apperrors "batteryusage/internal/platform/errors"
	"batteryusage/internal/platform/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var start = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type fakeSource struct {
	window domain.Window
	err    error
}

func (s fakeSource) Window(context.Context, time.Duration, bool) (domain.Window, error) {
	return s.window, s.err
}

type fakeResolver struct {
	packages domain.Packages
	err      error
	asked    []string
}

func (r *fakeResolver) Resolve(_ context.Context, names []string) (domain.Packages, error) {
	r.asked = names
	return r.packages, r.err
}

type fakeProjector struct {
	runs  []domain.Run
	slots map[domain.PeriodKey]domain.StoredSlot
}

func (p *fakeProjector) SaveRun(_ context.Context, run domain.Run) error {
	p.runs = append(p.runs, run)
	p.slots = map[domain.PeriodKey]domain.StoredSlot{}
	for _, slot := range run.Slots() {
		p.slots[slot.Key()] = slot
	}
	return nil
}

func (p *fakeProjector) LatestSlot(_ context.Context, key domain.PeriodKey) (domain.StoredSlot, error) {
	slot, ok := p.slots[key]
	if !ok {
		return domain.StoredSlot{}, apperrors.ErrNotFound
	}
	return slot, nil
}

type fakePublisher struct {
	published map[domain.PeriodKey]domain.StoredSlot
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, slots []domain.StoredSlot) error {
	if p.err != nil {
		return p.err
	}
	p.published = map[domain.PeriodKey]domain.StoredSlot{}
	for _, slot := range slots {
		p.published[slot.Key()] = slot
	}
	return nil
}

func (p *fakePublisher) Latest(_ context.Context, key domain.PeriodKey) (domain.StoredSlot, error) {
	slot, ok := p.published[key]
	if !ok {
		return domain.StoredSlot{}, apperrors.ErrNotFound
	}
	return slot, nil
}

type fixedIDs struct{}

func (fixedIDs) New() string { return "run-1" }

func fourHours() domain.Window {
	mail := snapshot.App{UID: 10001, PackageName: "com.example.mail:sync"}
	maps := snapshot.App{UID: 10002, PackageName: "com.example.maps"}
	var snaps []snapshot.Snapshot
	for i := 0; i <= 4; i++ {
		ts := start.Add(time.Duration(i) * time.Hour).UnixMilli()
		level := 100 - 2*i
		snaps = append(snaps,
			snapshot.Snapshot{Timestamp: ts, BatteryLevel: level, ZoneID: "UTC", Consumer: mail, PowerMah: float64(i) * 9, ForegroundMs: int64(i) * (10 * time.Minute).Milliseconds()},
			snapshot.Snapshot{Timestamp: ts, BatteryLevel: level, ZoneID: "UTC", Consumer: maps, PowerMah: float64(i) * 1, BackgroundMs: int64(i) * (5 * time.Minute).Milliseconds()},
		)
	}
	return domain.Window{Snapshots: snaps}
}

type harness struct {
	uc        usagein.Usecase
	projector *fakeProjector
	publisher *fakePublisher
	resolver  *fakeResolver
	metrics   *metrics.Metrics
}

func newHarness(window domain.Window, resolver *fakeResolver) harness {
	h := harness{projector: &fakeProjector{}, publisher: &fakePublisher{}, resolver: resolver, metrics: metrics.New()}
	settings := service.Settings{
		Options:   domain.DefaultOptions(),
		Location:  time.UTC,
		MaxGap:    24 * time.Hour,
		Retention: 9 * 24 * time.Hour,
	}
	var pr usageout.PackageResolver
	if resolver != nil {
		pr = resolver
	}
	svc := service.NewPipelineService(clock.Fixed{At: start.Add(5 * time.Hour)}, fixedIDs{}, fakeSource{window: window}, pr, h.projector, h.publisher, settings, h.metrics, nil)
	h.uc = usecase.NewInteractor(svc)
	return h
}

func TestRunPersistsAndPublishesEveryPeriod(t *testing.T) {
	t.Parallel()
	h := newHarness(fourHours(), nil)

	out, err := h.uc.Run(context.Background(), dto.RunInput{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.RunID != "run-1" || out.Mode != "full" || out.Days != 1 {
		t.Fatalf("unexpected run output: %+v", out)
	}
	// two hourly periods, one day and the whole range
	if out.Periods != 4 || len(h.projector.runs) != 1 || len(h.publisher.published) != 4 {
		t.Fatalf("expected 4 periods persisted and published, got %d/%d", out.Periods, len(h.publisher.published))
	}
	if out.Total.TotalPower != 40 || len(out.Total.Entries) != 2 {
		t.Fatalf("unexpected total slot: %+v", out.Total)
	}
	if out.Total.Entries[0].PackageName != "com.example.mail" || out.Total.Entries[0].PercentOfTotal != 90 {
		t.Fatalf("expected mail first with 90%%, got %+v", out.Total.Entries[0])
	}
	expected := `
# HELP batteryusage_pipeline_runs_total Total pipeline runs by outcome.
# TYPE batteryusage_pipeline_runs_total counter
batteryusage_pipeline_runs_total{outcome="ok"} 1
`
	if err := testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(expected), "batteryusage_pipeline_runs_total"); err != nil {
		t.Fatalf("run metrics: %v", err)
	}
}

func TestRunPurgeModeDropsMinorConsumers(t *testing.T) {
	t.Parallel()
	h := newHarness(fourHours(), nil)
	out, err := h.uc.Run(context.Background(), dto.RunInput{Purge: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Mode != "purge" || len(out.Total.Entries) != 1 || out.Total.Entries[0].PackageName != "com.example.mail" {
		t.Fatalf("expected only mail to survive purge: %+v", out.Total)
	}
}

func TestRunWithoutEnoughHistoryReportsNoData(t *testing.T) {
	t.Parallel()
	window := domain.Window{Snapshots: []snapshot.Snapshot{{Timestamp: start.UnixMilli(), BatteryLevel: 90}}}
	h := newHarness(window, nil)

	_, err := h.uc.Run(context.Background(), dto.RunInput{})
	if !errors.Is(err, apperrors.ErrNoUsageData) || !errors.Is(err, apperrors.ErrInsufficientData) {
		t.Fatalf("expected no usage data, got %v", err)
	}
	if len(h.projector.runs) != 0 {
		t.Fatalf("nothing should be persisted")
	}
	expected := `
# HELP batteryusage_pipeline_runs_total Total pipeline runs by outcome.
# TYPE batteryusage_pipeline_runs_total counter
batteryusage_pipeline_runs_total{outcome="no_data"} 1
`
	if err := testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(expected), "batteryusage_pipeline_runs_total"); err != nil {
		t.Fatalf("run metrics: %v", err)
	}
}

func TestRunMarksPackagesUnknownToResolverAsUninstalled(t *testing.T) {
	t.Parallel()
	resolver := &fakeResolver{packages: domain.Packages{"com.example.mail": {Label: "Mail", Installed: true}}}
	h := newHarness(fourHours(), resolver)

	out, err := h.uc.Run(context.Background(), dto.RunInput{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Join(resolver.asked, ",") != "com.example.mail,com.example.maps" {
		t.Fatalf("expected normalised package names, got %v", resolver.asked)
	}
	byPkg := map[string]dto.EntryOutput{}
	for _, e := range out.Total.Entries {
		byPkg[e.PackageName] = e
	}
	if byPkg["com.example.mail"].Label != "Mail" || byPkg["com.example.mail"].IsUninstalled {
		t.Fatalf("unexpected mail entry: %+v", byPkg["com.example.mail"])
	}
	if !byPkg["com.example.maps"].IsUninstalled {
		t.Fatalf("maps is unknown to the resolver and should be uninstalled: %+v", byPkg["com.example.maps"])
	}
}

func TestRunResolverFailureDisablesUninstalledDetection(t *testing.T) {
	t.Parallel()
	h := newHarness(fourHours(), &fakeResolver{err: errors.New("lookup down")})
	out, err := h.uc.Run(context.Background(), dto.RunInput{})
	if err != nil {
		t.Fatalf("resolver failure must not fail the run: %v", err)
	}
	for _, e := range out.Total.Entries {
		if e.IsUninstalled {
			t.Fatalf("unexpected uninstalled entry: %+v", e)
		}
	}
}

func TestRunPublisherFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	h := newHarness(fourHours(), nil)
	h.publisher.err = errors.New("redis down")
	if _, err := h.uc.Run(context.Background(), dto.RunInput{}); err != nil {
		t.Fatalf("publisher failure must not fail the run: %v", err)
	}
	if len(h.projector.runs) != 1 {
		t.Fatalf("run should still be persisted")
	}
}

func TestShowReadsProjectorOrCache(t *testing.T) {
	t.Parallel()
	h := newHarness(fourHours(), nil)
	if _, err := h.uc.Run(context.Background(), dto.RunInput{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	slot, err := h.uc.Show(context.Background(), dto.ShowInput{Day: 0, Hour: 1})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if slot.Label != "Mon, Mar 4 12:00-14:00" || slot.TotalPower != 20 {
		t.Fatalf("unexpected slot: %+v", slot)
	}
	cached, err := h.uc.Show(context.Background(), dto.ShowInput{Day: 0, Hour: 1, FromCache: true})
	if err != nil {
		t.Fatalf("show from cache: %v", err)
	}
	if cached.TotalPower != slot.TotalPower || cached.RunID != "run-1" {
		t.Fatalf("cache and projector disagree: %+v vs %+v", cached, slot)
	}

	if _, err := h.uc.Show(context.Background(), dto.ShowInput{Day: 7, Hour: 0}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.uc.Show(context.Background(), dto.ShowInput{Day: dto.All, Hour: 0}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSummaryClampsWindowToHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(fourHours(), nil)

	out, err := h.uc.Summary(context.Background(), dto.SummaryInput{Window: time.Hour})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !out.Start.Equal(start.Add(3*time.Hour)) || out.TotalPower != 10 {
		t.Fatalf("unexpected trailing-hour summary: %+v", out)
	}
	if len(out.Entries) != 1 {
		t.Fatalf("summary runs in purge mode, got %+v", out.Entries)
	}

	out, err = h.uc.Summary(context.Background(), dto.SummaryInput{Window: 48 * time.Hour})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !out.Start.Equal(start) || out.TotalPower != 40 {
		t.Fatalf("expected whole history, got %+v", out)
	}
	if len(h.projector.runs) != 0 {
		t.Fatalf("summary must not persist a run")
	}
}

func TestTimelineListsDaysAndBreakpoints(t *testing.T) {
	t.Parallel()
	h := newHarness(fourHours(), nil)
	out, err := h.uc.Timeline(context.Background())
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if out.Location != "UTC" || len(out.Days) != 1 || out.Days[0].Label != "Mon, Mar 4" {
		t.Fatalf("unexpected timeline: %+v", out)
	}
	hours := out.Days[0].Hours
	if len(hours) != 3 || hours[1].Level == nil || *hours[1].Level != 96 {
		t.Fatalf("unexpected hourly breakpoints: %+v", hours)
	}
}

func TestRunLogsPackagesTheResolverCannotFind(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	resolver := &fakeResolver{packages: domain.Packages{"com.example.mail": {Label: "Mail", Installed: true}}}
	settings := service.Settings{
		Options:   domain.DefaultOptions(),
		Location:  time.UTC,
		MaxGap:    24 * time.Hour,
		Retention: 9 * 24 * time.Hour,
	}
	svc := service.NewPipelineService(clock.Fixed{At: start.Add(5 * time.Hour)}, fixedIDs{}, fakeSource{window: fourHours()}, resolver, &fakeProjector{}, nil, settings, nil, zap.New(core))
	if _, err := usecase.NewInteractor(svc).Run(context.Background(), dto.RunInput{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	entries := logs.FilterMessage("falling back to recorded label").All()
	if len(entries) != 1 {
		t.Fatalf("expected one unresolved package log, got %d", len(entries))
	}
	logged, ok := entries[0].ContextMap()["error"].(string)
	if !ok || !strings.Contains(logged, apperrors.ErrUnresolvableConsumer.Error()) || !strings.Contains(logged, "com.example.maps") {
		t.Fatalf("unexpected log context: %+v", entries[0].ContextMap())
	}
}

func TestShowKeepsHiddenFlag(t *testing.T) {
	t.Parallel()
	window := fourHours()
	for i := range window.Snapshots {
		if app, ok := window.Snapshots[i].Consumer.(snapshot.App); ok && app.PackageName == "com.example.maps" {
			window.Snapshots[i].IsHidden = true
		}
	}
	h := newHarness(window, nil)
	if _, err := h.uc.Run(context.Background(), dto.RunInput{}); err != nil {
		t.Fatalf("run: %v", err)
	}
	slot, err := h.uc.Show(context.Background(), dto.ShowInput{Day: dto.All, Hour: dto.All})
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	byPkg := map[string]dto.EntryOutput{}
	for _, e := range slot.Entries {
		byPkg[e.PackageName] = e
	}
	if !byPkg["com.example.maps"].IsHidden || !byPkg["com.example.maps"].IsSystemEntry {
		t.Fatalf("expected hidden maps entry: %+v", byPkg["com.example.maps"])
	}
	if byPkg["com.example.mail"].IsHidden {
		t.Fatalf("mail is not hidden: %+v", byPkg["com.example.mail"])
	}
}
