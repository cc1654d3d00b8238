package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"nammakumta/directory/internal/domain"

	"github.com/redis/go-redis/v9"
)

// SyncState remembers how far the last shop listing walk got, so an
// interrupted sync resumes instead of starting over.
type SyncState interface {
	GetLastSyncedPage(ctx context.Context, collection domain.Collection) (int, error)
	SetLastSyncedPage(ctx context.Context, collection domain.Collection, pageNumber int) error
}

type redisSyncState struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisSyncState(redisClient *redis.Client) SyncState {
	return &redisSyncState{
		redisClient: redisClient,
		keyPrefix:   "kumta:sync:page:",
	}
}

func (s *redisSyncState) GetLastSyncedPage(ctx context.Context, collection domain.Collection) (int, error) {
	key := s.keyPrefix + collection.String()
	val, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // No progress saved yet
		}
		return 0, fmt.Errorf("failed to get last synced page for %s: %w", collection, err)
	}

	page, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("failed to parse page number for %s: %w", collection, err)
	}

	return page, nil
}

func (s *redisSyncState) SetLastSyncedPage(ctx context.Context, collection domain.Collection, pageNumber int) error {
	key := s.keyPrefix + collection.String()
	err := s.redisClient.Set(ctx, key, pageNumber, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to set last synced page for %s: %w", collection, err)
	}
	return nil
}
