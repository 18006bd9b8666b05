package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the enrollment engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when no record occupies the slot.
var ErrNotFound = errors.New("session record not found")

// Store defines a public type used by enrollflow APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore describes the newstore operation and its observable behavior.
//
// NewStore may return an error when input validation, dependency calls, or security checks fail.
// NewStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewStore(redisClient *redis.Client, prefix string) *Store {
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(recordName, contextID string) string {
	return s.prefix + ":" + recordName + ":" + contextID
}

// Publish writes the encoded session into the slot for (recordName,
// contextID), overwriting any existing record. The record's TTL mirrors the
// session expiry; a session without explicit expiry is stored without TTL.
func (s *Store) Publish(ctx context.Context, recordName, contextID string, sess *Session) error {
	encoded, err := Encode(sess)
	if err != nil {
		return err
	}

	ttl := sess.TTL(time.Now())
	if sess.ExpiresAt > 0 && ttl <= 0 {
		// Mirroring an already-elapsed expiry would be an immediate delete;
		// reject instead so the caller sees the publish fail.
		return fmt.Errorf("%w: session already expired", ErrNotFound)
	}

	if err := s.redis.Set(ctx, s.key(recordName, contextID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get reads the slot back through the same path non-interactive server
// requests use.
func (s *Store) Get(ctx context.Context, recordName, contextID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(recordName, contextID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return Decode(data)
}

// GetRaw returns the stored record bytes without decoding. Intended for
// byte-level idempotence checks and for readers that forward the record
// verbatim.
func (s *Store) GetRaw(ctx context.Context, recordName, contextID string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key(recordName, contextID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

// Delete clears the slot. Deleting an empty slot is not an error.
func (s *Store) Delete(ctx context.Context, recordName, contextID string) error {
	if err := s.redis.Del(ctx, s.key(recordName, contextID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
