package enrollflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errAttemptInFlight         = errors.New("attempt already in flight")
	errAttemptGuardUnavailable = errors.New("attempt guard unavailable")
)

// attemptGuard serializes credential attempts per claim key so a
// double-submitted form cannot race two verifications of the same code.
type attemptGuard struct {
	redis *redis.Client
}

func newAttemptGuard(redisClient *redis.Client) *attemptGuard {
	return &attemptGuard{redis: redisClient}
}

func (g *attemptGuard) key(claimKey string) string {
	return "epa:" + claimKey
}

func (g *attemptGuard) Acquire(ctx context.Context, claimKey string, ttl time.Duration) error {
	ok, err := g.redis.SetNX(ctx, g.key(claimKey), "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errAttemptGuardUnavailable, err)
	}
	if !ok {
		return errAttemptInFlight
	}
	return nil
}

func (g *attemptGuard) Release(ctx context.Context, claimKey string) error {
	if err := g.redis.Del(ctx, g.key(claimKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errAttemptGuardUnavailable, err)
	}
	return nil
}
