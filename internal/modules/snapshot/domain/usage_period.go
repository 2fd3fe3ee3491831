package domain

import (
	"fmt"

	apperrors "batteryusage/internal/platform/errors"
)

// UsagePeriod is one foreground session of an app, used to derive screen-on time.
type UsagePeriod struct {
	UserID      int64  `json:"user_id"`
	PackageName string `json:"package_name"`
	StartMs     int64  `json:"start_ms"`
	EndMs       int64  `json:"end_ms"`
}

func (p UsagePeriod) Validate() error {
	if p.PackageName == "" {
		return fmt.Errorf("%w: usage period package name is required", apperrors.ErrInvalidInput)
	}
	if p.StartMs <= 0 || p.EndMs < p.StartMs {
		return fmt.Errorf("%w: usage period [%d, %d] is not a valid range", apperrors.ErrInvalidInput, p.StartMs, p.EndMs)
	}
	return nil
}
