package orders

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/angelmondragon/courier-dispatch/pkg/logger"
)

const (
	orderNumberPrefix = "FD"
	orderNumberModulo = 1_000_000
	counterTTL        = 48 * time.Hour
)

// FormatOrderNumber renders FD-YYYYMMDD-NNNNNN.
func FormatOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", orderNumberPrefix, at.UTC().Format("20060102"), seq%orderNumberModulo)
}

type dailyCounter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(parts ...string) string
}

// RedisSequencer numbers orders from a per-day Redis counter. When Redis is
// unreachable it falls back to a random sequence.
type RedisSequencer struct {
	counter dailyCounter
	logg    *logger.Logger
}

func NewRedisSequencer(counter dailyCounter, logg *logger.Logger) *RedisSequencer {
	return &RedisSequencer{counter: counter, logg: logg}
}

func (s *RedisSequencer) Next(ctx context.Context, at time.Time) (string, error) {
	day := at.UTC().Format("20060102")
	seq, err := s.counter.IncrWithTTL(ctx, s.counter.CounterKey("orders", day), counterTTL)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "order counter unavailable, using random order number")
		}
		return RandomSequencer{}.Next(ctx, at)
	}
	return FormatOrderNumber(at, seq), nil
}

// RandomSequencer draws the sequence part at random. Collisions surface as
// unique violations and are retried by Place.
type RandomSequencer struct{}

func (RandomSequencer) Next(_ context.Context, at time.Time) (string, error) {
	return FormatOrderNumber(at, rand.Int64N(orderNumberModulo)), nil
}
