package out

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"batteryusage/internal/modules/usage/domain"
	usageout "batteryusage/internal/modules/usage/port/out"
	apperrors "batteryusage/internal/platform/errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var ErrCacheMiss = errors.New("cache miss")

// KVStore is the slice of Redis the publisher needs; tests swap in memory.
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisKVStore struct {
	client *redis.Client
}

func NewRedisKVStore(client *redis.Client) *RedisKVStore {
	return &RedisKVStore{client: client}
}

func (r *RedisKVStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKVStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// KVUsagePublisher writes every slot of a run under its own key, then points
// the latest marker at the run.
type KVUsagePublisher struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

func NewKVUsagePublisher(kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) usageout.Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVUsagePublisher{kv: kv, prefix: prefix, ttl: ttl, logger: logger}
}

func (p *KVUsagePublisher) latestKey() string {
	return fmt.Sprintf("%s:usage:latest", p.prefix)
}

func (p *KVUsagePublisher) slotKey(runID string, key domain.PeriodKey) string {
	return fmt.Sprintf("%s:usage:%s:%d:%d", p.prefix, runID, key.Day, key.Hour)
}

func (p *KVUsagePublisher) Publish(ctx context.Context, runID string, slots []domain.StoredSlot) error {
	for _, slot := range slots {
		payload, err := json.Marshal(slot)
		if err != nil {
			return fmt.Errorf("marshal slot %d/%d: %w", slot.Day, slot.Hour, err)
		}
		if err := p.kv.Set(ctx, p.slotKey(runID, slot.Key()), string(payload), p.ttl); err != nil {
			return fmt.Errorf("publish slot %d/%d: %w", slot.Day, slot.Hour, err)
		}
	}
	if err := p.kv.Set(ctx, p.latestKey(), runID, p.ttl); err != nil {
		return fmt.Errorf("publish latest run: %w", err)
	}
	p.logger.Debug("published usage map", zap.String("run_id", runID), zap.Int("slots", len(slots)))
	return nil
}

func (p *KVUsagePublisher) Latest(ctx context.Context, key domain.PeriodKey) (domain.StoredSlot, error) {
	runID, err := p.kv.Get(ctx, p.latestKey())
	if err != nil {
		return domain.StoredSlot{}, p.mapErr(err, "latest run")
	}
	raw, err := p.kv.Get(ctx, p.slotKey(runID, key))
	if err != nil {
		return domain.StoredSlot{}, p.mapErr(err, fmt.Sprintf("period %d/%d", key.Day, key.Hour))
	}
	slot := domain.StoredSlot{}
	if err := json.Unmarshal([]byte(raw), &slot); err != nil {
		return domain.StoredSlot{}, fmt.Errorf("decode published slot: %w", err)
	}
	return slot, nil
}

func (p *KVUsagePublisher) mapErr(err error, what string) error {
	if errors.Is(err, ErrCacheMiss) {
		return fmt.Errorf("%w: published %s", apperrors.ErrNotFound, what)
	}
	return fmt.Errorf("read published %s: %w", what, err)
}
