package session

import (
	"context"
	"testing"
	"time"

	"github.com/gpt-qa-tgbot-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	manager, err := NewManager(&config.SessionConfig{
		Type: "memory",
		TTL:  time.Hour,
	}, log)
	require.NoError(t, err)
	return manager
}

func TestPendingDefaultsToNone(t *testing.T) {
	manager := newTestManager(t)

	state, err := manager.Pending(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, PendingNone, state)
}

func TestSetAndClearPending(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.SetPending(ctx, 42, AwaitingPassword))

	state, err := manager.Pending(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, AwaitingPassword, state)

	require.NoError(t, manager.ClearPending(ctx, 42))

	state, err = manager.Pending(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, PendingNone, state)
}

func TestTakePendingFiresOnce(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.SetPending(ctx, 42, AwaitingQuestion))

	state, err := manager.TakePending(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, AwaitingQuestion, state)

	state, err = manager.TakePending(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, PendingNone, state)
}

func TestPendingIsPerChat(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.SetPending(ctx, 1, AwaitingSearch))

	state, err := manager.Pending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, PendingNone, state)
}

func TestSetPendingOverwrites(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, manager.SetPending(ctx, 42, AwaitingPassword))
	require.NoError(t, manager.SetPending(ctx, 42, AwaitingSearch))

	state, err := manager.TakePending(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, AwaitingSearch, state)
}

func TestUnsupportedStoreType(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.FatalLevel)

	_, err := NewManager(&config.SessionConfig{Type: "etcd"}, log)
	assert.Error(t, err)
}
