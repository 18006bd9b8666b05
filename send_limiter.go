package enrollflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	errSendRateLimited        = errors.New("send rate limited")
	errSendLimiterUnavailable = errors.New("send limiter unavailable")
)

type sendLimiter struct {
	redis  *redis.Client
	config BrokerConfig
}

func newSendLimiter(redisClient *redis.Client, cfg BrokerConfig) *sendLimiter {
	return &sendLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *sendLimiter) Check(ctx context.Context, claimKey, ip string) error {
	if err := l.enforceFixedWindow(ctx, sendClaimKey(claimKey)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, sendIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *sendLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errSendLimiterUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.SendWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", errSendLimiterUnavailable, err)
		}
	}

	if count > int64(l.config.SendMaxAttempts) {
		return errSendRateLimited
	}

	return nil
}

func sendClaimKey(claimKey string) string {
	return "eps:" + claimKey
}

func sendIPKey(ip string) string {
	return "epsip:" + ip
}
