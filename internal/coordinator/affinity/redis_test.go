package affinity

import (
	"context"
	"testing"
	"time"

	"github.com/caseline/caseline/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisStore(t *testing.T, cfg config.AffinityRedisConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.Addr = mr.Addr()
	store, err := NewRedisStore(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t, config.AffinityRedisConfig{})
	ctx := context.Background()

	name, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, store.Set(ctx, "conv-1", "gemini"))
	name, err = store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "gemini", name)

	require.NoError(t, store.Clear(ctx, "conv-1"))
	name, err = store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	store, mr := newRedisStore(t, config.AffinityRedisConfig{Prefix: "caseline"})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "conv-1", "groq"))
	got, err := mr.Get("caseline:conv-1")
	require.NoError(t, err)
	assert.Equal(t, "groq", got)
}

func TestRedisStoreTTLExpiresEntries(t *testing.T) {
	store, mr := newRedisStore(t, config.AffinityRedisConfig{TTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "conv-1", "gemini"))
	mr.FastForward(2 * time.Minute)

	name, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestRedisStoreConnectionFailure(t *testing.T) {
	_, err := NewRedisStore(zap.NewNop(), config.AffinityRedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestNewStoreFactory(t *testing.T) {
	store, err := NewStore(zap.NewNop(), &config.AffinityConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore(zap.NewNop(), &config.AffinityConfig{Type: "etcd"})
	require.Error(t, err)
}
