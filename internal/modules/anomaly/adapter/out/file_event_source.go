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

// FileEventSource reads the anomaly events written by the external detector.
// A missing file means no anomalies.
type FileEventSource struct {
	path string
}

func NewFileEventSource(dataDir string) anomalyout.EventSource {
	return &FileEventSource{path: filepath.Join(dataDir, "anomaly", "events.json")}
}

func (s *FileEventSource) Load(_ context.Context) ([]domain.Event, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.Event{}, nil
		}
		return nil, fmt.Errorf("read anomaly events: %w", err)
	}
	events := []domain.Event{}
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, fmt.Errorf("decode anomaly events: %w", err)
	}
	return events, nil
}
