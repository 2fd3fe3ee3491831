package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"

	snapshot "batteryusage/internal/modules/snapshot/domain"
	apperrors "batteryusage/internal/platform/errors"
)

// Event is one precomputed anomaly, such as adaptive brightness being off.
// EntryKey optionally points at the usage entry the anomaly is about.
type Event struct {
	Key          string  `json:"key"`
	Kind         string  `json:"kind"`
	Score        float64 `json:"score"`
	ConsumerKind string  `json:"consumer_kind,omitempty"`
	EntryKey     string  `json:"entry_key,omitempty"`
	PackageName  string  `json:"package_name,omitempty"`
	Hint         string  `json:"hint,omitempty"`
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Key) == "" {
		return fmt.Errorf("%w: anomaly key is required", apperrors.ErrInvalidInput)
	}
	if math.IsNaN(e.Score) || math.IsInf(e.Score, 0) {
		return fmt.Errorf("%w: anomaly %s has a non-finite score", apperrors.ErrInvalidInput, e.Key)
	}
	if e.ConsumerKind != "" {
		if _, err := snapshot.ParseKind(e.ConsumerKind); err != nil {
			return fmt.Errorf("%w: anomaly %s: %v", apperrors.ErrInvalidInput, e.Key, err)
		}
	}
	return nil
}

// BasePackage is the package the anomaly refers to without a process suffix.
func (e Event) BasePackage() string {
	return snapshot.BasePackage(e.PackageName)
}

type Dismissals map[string]struct{}

func NewDismissals(keys []string) Dismissals {
	out := make(Dismissals, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			out[key] = struct{}{}
		}
	}
	return out
}

func (d Dismissals) Has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d Dismissals) Keys() []string {
	out := make([]string, 0, len(d))
	for key := range d {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Top returns the highest-scoring event whose key is not dismissed. Equal
// scores resolve to the smallest key. Invalid events are never selected.
func Top(events []Event, dismissed Dismissals) (Event, bool) {
	var (
		best  Event
		found bool
	)
	for _, e := range events {
		if e.Validate() != nil || dismissed.Has(e.Key) {
			continue
		}
		if !found || e.Score > best.Score || (e.Score == best.Score && e.Key < best.Key) {
			best = e
			found = true
		}
	}
	return best, found
}
