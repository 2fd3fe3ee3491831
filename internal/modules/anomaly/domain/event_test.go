package domain_test

import (
	"math"
	"testing"

	"batteryusage/internal/modules/anomaly/domain"
)

func TestTopPicksHighestNonDismissed(t *testing.T) {
	t.Parallel()
	events := []domain.Event{
		{Key: "brightness", Kind: "settings", Score: 0.4},
		{Key: "wakelock", Kind: "app", Score: 0.9, ConsumerKind: "app", PackageName: "com.example.mail:sync"},
		{Key: "screen_timeout", Kind: "settings", Score: 0.7},
	}
	got, ok := domain.Top(events, nil)
	if !ok || got.Key != "wakelock" {
		t.Fatalf("expected wakelock, got %+v (%v)", got, ok)
	}
	if got.BasePackage() != "com.example.mail" {
		t.Fatalf("unexpected base package: %s", got.BasePackage())
	}

	got, ok = domain.Top(events, domain.NewDismissals([]string{"wakelock"}))
	if !ok || got.Key != "screen_timeout" {
		t.Fatalf("expected screen_timeout after dismissal, got %+v", got)
	}
}

func TestTopNoneWhenAllDismissedOrEmpty(t *testing.T) {
	t.Parallel()
	if _, ok := domain.Top(nil, nil); ok {
		t.Fatalf("expected no event for empty input")
	}
	events := []domain.Event{{Key: "a", Score: 1}}
	if _, ok := domain.Top(events, domain.NewDismissals([]string{"a"})); ok {
		t.Fatalf("expected no event when everything is dismissed")
	}
}

func TestTopBreaksTiesByKey(t *testing.T) {
	t.Parallel()
	events := []domain.Event{{Key: "b", Score: 1}, {Key: "a", Score: 1}, {Key: "c", Score: 1}}
	for i := 0; i < 3; i++ {
		got, _ := domain.Top(events, nil)
		if got.Key != "a" {
			t.Fatalf("expected deterministic tie-break on key, got %s", got.Key)
		}
		events = append(events[1:], events[0])
	}
}

func TestTopSkipsInvalidEvents(t *testing.T) {
	t.Parallel()
	events := []domain.Event{
		{Key: "nan", Score: math.NaN()},
		{Key: "", Score: 5},
		{Key: "bad_kind", Score: 4, ConsumerKind: "device"},
		{Key: "ok", Score: -1},
	}
	got, ok := domain.Top(events, nil)
	if !ok || got.Key != "ok" {
		t.Fatalf("expected only the valid event, got %+v", got)
	}
}

func TestDismissalsKeysSorted(t *testing.T) {
	t.Parallel()
	d := domain.NewDismissals([]string{"b", " a ", "", "b"})
	keys := d.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
