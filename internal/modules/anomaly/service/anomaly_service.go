package service

import (
	"context"
	"fmt"
	"strings"

	"batteryusage/internal/modules/anomaly/domain"
	"batteryusage/internal/modules/anomaly/dto"
	anomalyout "batteryusage/internal/modules/anomaly/port/out"
	apperrors "batteryusage/internal/platform/errors"

	"go.uber.org/zap"
)

type AnomalyService struct {
	events     anomalyout.EventSource
	dismissals anomalyout.DismissalStore
	logger     *zap.Logger
}

func NewAnomalyService(events anomalyout.EventSource, dismissals anomalyout.DismissalStore, logger *zap.Logger) *AnomalyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnomalyService{events: events, dismissals: dismissals, logger: logger}
}

func (s *AnomalyService) Top(ctx context.Context) (dto.TopOutput, error) {
	events, err := s.events.Load(ctx)
	if err != nil {
		return dto.TopOutput{}, err
	}
	dismissed, err := s.dismissals.Load(ctx)
	if err != nil {
		return dto.TopOutput{}, err
	}
	out := dto.TopOutput{Candidate: len(events), Dismissed: len(dismissed)}
	for _, e := range events {
		if err := e.Validate(); err != nil {
			s.logger.Debug("ignoring anomaly event", zap.Error(err))
		}
	}
	top, ok := domain.Top(events, dismissed)
	if !ok {
		return out, nil
	}
	out.Found = true
	out.Event = dto.EventOutput{
		Key:         top.Key,
		Kind:        top.Kind,
		Score:       top.Score,
		EntryKey:    top.EntryKey,
		PackageName: top.BasePackage(),
		Hint:        top.Hint,
	}
	return out, nil
}

func (s *AnomalyService) Dismiss(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: anomaly key is required", apperrors.ErrInvalidInput)
	}
	dismissed, err := s.dismissals.Load(ctx)
	if err != nil {
		return err
	}
	if dismissed.Has(key) {
		return nil
	}
	dismissed[key] = struct{}{}
	if err := s.dismissals.Save(ctx, dismissed); err != nil {
		return err
	}
	s.logger.Info("dismissed anomaly", zap.String("key", key))
	return nil
}

func (s *AnomalyService) Reset(ctx context.Context) error {
	return s.dismissals.Clear(ctx)
}
