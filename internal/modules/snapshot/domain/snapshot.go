package domain

import (
	"fmt"
	"math"

	apperrors "batteryusage/internal/platform/errors"
)

const (
	StatusUnknown     = 1
	StatusCharging    = 2
	StatusDischarging = 3
	StatusNotCharging = 4
	StatusFull        = 5
)

// FillerKey is the frame key of snapshots that carry no consumer at all.
const FillerKey = "filler"

// Snapshot is one raw sample: the device battery state plus, optionally, the
// cumulative usage of one consumer at that instant.
type Snapshot struct {
	Timestamp           int64       `json:"timestamp"`
	ZoneID              string      `json:"zone_id,omitempty"`
	BootTimestamp       int64       `json:"boot_timestamp"`
	BatteryLevel        int         `json:"battery_level"`
	BatteryStatus       int         `json:"battery_status"`
	BatteryHealth       int         `json:"battery_health"`
	Consumer            ConsumerRef `json:"consumer,omitempty"`
	Label               string      `json:"label,omitempty"`
	PowerMah            float64     `json:"power_mah"`
	ForegroundMs        int64       `json:"foreground_ms"`
	ForegroundServiceMs int64       `json:"foreground_service_ms"`
	BackgroundMs        int64       `json:"background_ms"`
	IsHidden            bool        `json:"is_hidden"`
}

func (s Snapshot) Key() string {
	if s.Consumer == nil {
		return FillerKey
	}
	return s.Consumer.Key()
}

func (s Snapshot) HasUsage() bool {
	return s.PowerMah != 0 || s.ForegroundMs != 0 || s.ForegroundServiceMs != 0 || s.BackgroundMs != 0
}

// IsFiller reports placeholder samples inserted when no consumer data exists
// for an instant. They carry a level but never appear in usage output.
func (s Snapshot) IsFiller() bool {
	if s.HasUsage() {
		return false
	}
	switch c := s.Consumer.(type) {
	case nil:
		return true
	case App:
		return c.IsFake()
	case SystemComponent, User:
		return false
	default:
		panic(fmt.Sprintf("unhandled consumer type %T", s.Consumer))
	}
}

func (s Snapshot) IsCharged() bool {
	return s.BatteryStatus == StatusFull || s.BatteryLevel >= 100
}

// BootedAt is the wall-clock instant the device booted before this sample.
func (s Snapshot) BootedAt() int64 {
	return s.Timestamp - s.BootTimestamp
}

func (s Snapshot) Validate() error {
	switch {
	case s.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp must be positive", apperrors.ErrMalformedSnapshot)
	case s.BatteryLevel < 0 || s.BatteryLevel > 100:
		return fmt.Errorf("%w: battery level %d out of range", apperrors.ErrMalformedSnapshot, s.BatteryLevel)
	case s.BootTimestamp < 0:
		return fmt.Errorf("%w: negative boot timestamp", apperrors.ErrMalformedSnapshot)
	case s.PowerMah < 0 || math.IsNaN(s.PowerMah) || math.IsInf(s.PowerMah, 0):
		return fmt.Errorf("%w: invalid power %v", apperrors.ErrMalformedSnapshot, s.PowerMah)
	case s.ForegroundMs < 0 || s.ForegroundServiceMs < 0 || s.BackgroundMs < 0:
		return fmt.Errorf("%w: negative usage time", apperrors.ErrMalformedSnapshot)
	}
	return nil
}
