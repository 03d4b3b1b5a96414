package paymentwebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "hb:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestGuardDetectsRedelivery(t *testing.T) {
	store := newMemoryStore()
	guard, err := NewIdempotencyGuard(store, time.Hour, "payment_webhook")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, guard.Delete(context.Background(), "evt_1"))
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuardValidation(t *testing.T) {
	_, err := NewIdempotencyGuard(nil, time.Hour, "scope")
	require.Error(t, err)
	_, err = NewIdempotencyGuard(newMemoryStore(), -time.Second, "scope")
	require.Error(t, err)
	_, err = NewIdempotencyGuard(newMemoryStore(), time.Hour, "")
	require.Error(t, err)

	store := newMemoryStore()
	store.err = errors.New("redis down")
	guard, err := NewIdempotencyGuard(store, time.Hour, "scope")
	require.NoError(t, err)
	_, err = guard.CheckAndMark(context.Background(), "evt")
	require.Error(t, err)
	_, err = guard.CheckAndMark(context.Background(), "")
	require.Error(t, err)
}
