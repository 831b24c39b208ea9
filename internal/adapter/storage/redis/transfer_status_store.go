package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mybank/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// TransferStatusStore implements ports.TransferStatusStore using Redis.
// Records are stored as JSON under transfer:<id> and expire after their TTL.
type TransferStatusStore struct {
	client *goredis.Client
	prefix string
}

// NewTransferStatusStore creates a new Redis-backed status store.
func NewTransferStatusStore(client *goredis.Client) *TransferStatusStore {
	return &TransferStatusStore{
		client: client,
		prefix: "transfer:",
	}
}

// Put overwrites the stored record.
func (s *TransferStatusStore) Put(ctx context.Context, record *domain.TransferRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal transfer record: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+record.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis transfer status set: %w", err)
	}
	return nil
}

// Get returns the stored record, or nil if it is unknown or expired.
func (s *TransferStatusStore) Get(ctx context.Context, id string) (*domain.TransferRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis transfer status get: %w", err)
	}

	var rec domain.TransferRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal transfer record: %w", err)
	}
	return &rec, nil
}
