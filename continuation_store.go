package enrollflow

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	continuationKeyPrefix       = "epc"
	continuationRecordVersionV1 = 1
)

var (
	errContinuationNotFound         = errors.New("continuation record not found")
	errContinuationSecretMismatch   = errors.New("continuation secret mismatch")
	errContinuationRedisUnavailable = errors.New("continuation redis unavailable")
)

type continuationRecord struct {
	SecretHash [32]byte
	IssuedAt   int64
}

type continuationStore struct {
	redis  *redis.Client
	prefix string
}

func newContinuationStore(redisClient *redis.Client) *continuationStore {
	return &continuationStore{
		redis:  redisClient,
		prefix: continuationKeyPrefix,
	}
}

func (s *continuationStore) key(claimKey string) string {
	return s.prefix + ":" + claimKey
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *continuationStore) Save(ctx context.Context, claimKey string, record *continuationRecord, ttl time.Duration) error {
	encoded, err := encodeContinuationRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(claimKey), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errContinuationRedisUnavailable, err)
	}

	return nil
}

// Consume describes the consume operation and its observable behavior.
//
// Consume may return an error when input validation, dependency calls, or security checks fail.
// Consume does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *continuationStore) Consume(ctx context.Context, claimKey string, providedHash [32]byte) (*continuationRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(claimKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errContinuationNotFound
		}
		return nil, fmt.Errorf("%w: %v", errContinuationRedisUnavailable, err)
	}

	record, err := decodeContinuationRecord(data)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
		return nil, errContinuationSecretMismatch
	}

	return record, nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation, dependency calls, or security checks fail.
// Clear does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *continuationStore) Clear(ctx context.Context, claimKey string) error {
	if err := s.redis.Del(ctx, s.key(claimKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errContinuationRedisUnavailable, err)
	}
	return nil
}

func encodeContinuationRecord(record *continuationRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(continuationRecordVersionV1)
	buf.Write(record.SecretHash[:])

	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeContinuationRecord(data []byte) (*continuationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != continuationRecordVersionV1 {
		return nil, errors.New("invalid continuation record version")
	}

	record := &continuationRecord{}

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}

	return record, nil
}
