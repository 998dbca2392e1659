package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// PendingState names which one-shot continuation the next free-text
// message of a chat is routed to. The empty string means none.
type PendingState string

const (
	PendingNone      PendingState = ""
	AwaitingPassword PendingState = "awaiting_password"
	AwaitingQuestion PendingState = "awaiting_question"
	AwaitingSearch   PendingState = "awaiting_search"
)

// Store holds the per-chat pending continuation.
type Store interface {
	Pending(ctx context.Context, chatID int64) (PendingState, error)
	SetPending(ctx context.Context, chatID int64, state PendingState) error
	ClearPending(ctx context.Context, chatID int64) error
}

// Manager selects a storage backend from config.
type Manager struct {
	store  Store
	logger *logrus.Logger
}

// NewManager creates a session manager with the configured backend.
func NewManager(cfg *config.SessionConfig, logger *logrus.Logger) (*Manager, error) {
	var store Store

	switch cfg.Type {
	case "redis":
		redisStore, err := NewRedisStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		store = redisStore
	case "memory":
		store = NewMemoryStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", cfg.Type)
	}

	return &Manager{store: store, logger: logger}, nil
}

func (m *Manager) Pending(ctx context.Context, chatID int64) (PendingState, error) {
	return m.store.Pending(ctx, chatID)
}

func (m *Manager) SetPending(ctx context.Context, chatID int64, state PendingState) error {
	return m.store.SetPending(ctx, chatID, state)
}

func (m *Manager) ClearPending(ctx context.Context, chatID int64) error {
	return m.store.ClearPending(ctx, chatID)
}

// TakePending reads and clears the pending state in one step, so a
// continuation fires at most once per registration.
func (m *Manager) TakePending(ctx context.Context, chatID int64) (PendingState, error) {
	state, err := m.store.Pending(ctx, chatID)
	if err != nil {
		return PendingNone, err
	}
	if state == PendingNone {
		return PendingNone, nil
	}
	if err := m.store.ClearPending(ctx, chatID); err != nil {
		m.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to clear pending state")
	}
	return state, nil
}

// RedisStore keeps pending state in redis with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisStore(cfg *config.SessionConfig, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (r *RedisStore) Pending(ctx context.Context, chatID int64) (PendingState, error) {
	value, err := r.client.Get(ctx, pendingKey(chatID)).Result()
	if err == redis.Nil {
		return PendingNone, nil
	}
	if err != nil {
		return PendingNone, err
	}
	return PendingState(value), nil
}

func (r *RedisStore) SetPending(ctx context.Context, chatID int64, state PendingState) error {
	return r.client.Set(ctx, pendingKey(chatID), string(state), r.ttl).Err()
}

func (r *RedisStore) ClearPending(ctx context.Context, chatID int64) error {
	return r.client.Del(ctx, pendingKey(chatID)).Err()
}

// MemoryStore keeps pending state in-process.
type MemoryStore struct {
	states *cache.Cache
}

func NewMemoryStore(cfg *config.SessionConfig) *MemoryStore {
	return &MemoryStore{
		states: cache.New(cfg.TTL, 10*time.Minute),
	}
}

func (m *MemoryStore) Pending(ctx context.Context, chatID int64) (PendingState, error) {
	if val, found := m.states.Get(pendingKey(chatID)); found {
		return val.(PendingState), nil
	}
	return PendingNone, nil
}

func (m *MemoryStore) SetPending(ctx context.Context, chatID int64, state PendingState) error {
	m.states.SetDefault(pendingKey(chatID), state)
	return nil
}

func (m *MemoryStore) ClearPending(ctx context.Context, chatID int64) error {
	m.states.Delete(pendingKey(chatID))
	return nil
}

func pendingKey(chatID int64) string {
	return fmt.Sprintf("pending:%d", chatID)
}
