package domain

import (
	"fmt"
	"strings"

	apperrors "batteryusage/internal/platform/errors"
)

// Record is the ingestion wire shape of a snapshot. Required numeric fields
// are pointers so that absence can be told apart from zero.
type Record struct {
	Timestamp           *int64  `json:"timestamp"`
	ZoneID              string  `json:"zone_id"`
	BootTimestamp       int64   `json:"boot_timestamp"`
	BatteryLevel        *int    `json:"battery_level"`
	BatteryStatus       int     `json:"battery_status"`
	BatteryHealth       int     `json:"battery_health"`
	ConsumerKind        string  `json:"consumer_kind"`
	ConsumerID          *int64  `json:"consumer_id"`
	UserID              int64   `json:"user_id"`
	PackageName         string  `json:"package_name"`
	AppLabel            string  `json:"app_label"`
	ConsumePowerMah     float64 `json:"consume_power_mah"`
	ForegroundMs        int64   `json:"foreground_ms"`
	ForegroundServiceMs int64   `json:"foreground_service_ms"`
	BackgroundMs        int64   `json:"background_ms"`
	IsHidden            bool    `json:"is_hidden"`
}

func (r Record) ToSnapshot() (Snapshot, error) {
	if r.Timestamp == nil {
		return Snapshot{}, fmt.Errorf("%w: timestamp is required", apperrors.ErrMalformedSnapshot)
	}
	if r.BatteryLevel == nil {
		return Snapshot{}, fmt.Errorf("%w: battery level is required", apperrors.ErrMalformedSnapshot)
	}
	consumer, err := r.consumer()
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{
		Timestamp:           *r.Timestamp,
		ZoneID:              r.ZoneID,
		BootTimestamp:       r.BootTimestamp,
		BatteryLevel:        *r.BatteryLevel,
		BatteryStatus:       r.BatteryStatus,
		BatteryHealth:       r.BatteryHealth,
		Consumer:            consumer,
		Label:               strings.TrimSpace(r.AppLabel),
		PowerMah:            r.ConsumePowerMah,
		ForegroundMs:        r.ForegroundMs,
		ForegroundServiceMs: r.ForegroundServiceMs,
		BackgroundMs:        r.BackgroundMs,
		IsHidden:            r.IsHidden,
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (r Record) consumer() (ConsumerRef, error) {
	pkg := strings.TrimSpace(r.PackageName)
	kind := strings.TrimSpace(r.ConsumerKind)
	if kind == "" {
		if pkg == "" {
			return nil, nil
		}
		kind = string(KindApp)
	}
	parsed, err := ParseKind(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedSnapshot, err)
	}
	switch parsed {
	case KindApp:
		if r.ConsumerID == nil {
			if pkg == "" || pkg == FakePackageName {
				return App{PackageName: pkg, UserID: r.UserID}, nil
			}
			return nil, fmt.Errorf("%w: app consumer id is required", apperrors.ErrMalformedSnapshot)
		}
		return App{UID: *r.ConsumerID, UserID: r.UserID, PackageName: pkg}, nil
	case KindSystem:
		if r.ConsumerID == nil || *r.ConsumerID < 0 {
			return nil, fmt.Errorf("%w: system consumer drain type is required", apperrors.ErrMalformedSnapshot)
		}
		return SystemComponent{DrainType: int(*r.ConsumerID)}, nil
	case KindUser:
		if r.ConsumerID != nil {
			return User{UserID: *r.ConsumerID}, nil
		}
		return User{UserID: r.UserID}, nil
	default:
		panic(fmt.Sprintf("unhandled consumer kind %q", parsed))
	}
}
