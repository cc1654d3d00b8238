package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"nammakumta/directory/internal/router"

	"github.com/redis/go-redis/v9"
)

// NavigationStore persists one router snapshot per browser session.
type NavigationStore interface {
	// Load returns the saved snapshot and whether one existed.
	Load(ctx context.Context, sessionID string) (router.State, bool, error)
	Save(ctx context.Context, sessionID string, st router.State) error
}

type redisNavigationStore struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

func NewRedisNavigationStore(redisClient *redis.Client, ttl time.Duration) NavigationStore {
	return &redisNavigationStore{
		redisClient: redisClient,
		keyPrefix:   "kumta:nav:",
		ttl:         ttl,
	}
}

func (s *redisNavigationStore) Load(ctx context.Context, sessionID string) (router.State, bool, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return router.State{}, false, nil
		}
		return router.State{}, false, fmt.Errorf("failed to load navigation for session %s: %w", sessionID, err)
	}

	var st router.State
	if err := json.Unmarshal(val, &st); err != nil {
		return router.State{}, false, fmt.Errorf("failed to decode navigation for session %s: %w", sessionID, err)
	}
	return st, true, nil
}

func (s *redisNavigationStore) Save(ctx context.Context, sessionID string, st router.State) error {
	val, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode navigation: %w", err)
	}

	// sliding expiry: every navigation extends the session's lifetime
	if err := s.redisClient.Set(ctx, s.keyPrefix+sessionID, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save navigation for session %s: %w", sessionID, err)
	}
	return nil
}

// MemoryNavigationStore keeps snapshots in process memory. Used when Redis is
// not configured and in tests.
type MemoryNavigationStore struct {
	mu       sync.Mutex
	sessions map[string]router.State
}

func NewMemoryNavigationStore() *MemoryNavigationStore {
	return &MemoryNavigationStore{sessions: make(map[string]router.State)}
}

func (s *MemoryNavigationStore) Load(_ context.Context, sessionID string) (router.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return router.State{}, false, nil
	}
	st.Entries = append([]router.Entry(nil), st.Entries...)
	return st, true, nil
}

func (s *MemoryNavigationStore) Save(_ context.Context, sessionID string, st router.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.Entries = append([]router.Entry(nil), st.Entries...)
	s.sessions[sessionID] = st
	return nil
}
