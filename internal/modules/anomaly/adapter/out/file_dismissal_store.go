package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"batteryusage/internal/modules/anomaly/domain"
	anomalyout "batteryusage/internal/modules/anomaly/port/out"
)

type FileDismissalStore struct {
	path string
}

func NewFileDismissalStore(dataDir string) anomalyout.DismissalStore {
	return &FileDismissalStore{path: filepath.Join(dataDir, "anomaly", "dismissed.json")}
}

func (s *FileDismissalStore) Load(_ context.Context) (domain.Dismissals, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Dismissals{}, nil
		}
		return nil, fmt.Errorf("read dismissed anomalies: %w", err)
	}
	var keys []string
	if err := json.Unmarshal(payload, &keys); err != nil {
		return nil, fmt.Errorf("decode dismissed anomalies: %w", err)
	}
	return domain.NewDismissals(keys), nil
}

func (s *FileDismissalStore) Save(_ context.Context, dismissals domain.Dismissals) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create anomaly dir: %w", err)
	}
	payload, err := json.MarshalIndent(dismissals.Keys(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dismissed anomalies: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write dismissed anomalies: %w", err)
	}
	return nil
}

func (s *FileDismissalStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear dismissed anomalies: %w", err)
	}
	return nil
}
