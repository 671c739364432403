package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/licensehub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisOptions(t *testing.T) {
	opts, err := redisOptions(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = redisOptions(config.RedisConfig{Addr: " cache:6379 ", Password: "pw", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = redisOptions(config.RedisConfig{Addr: "redis://:secret@cache:6380/3"})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	_, err = redisOptions(config.RedisConfig{Addr: "redis://cache:6380/notadb"})
	assert.Error(t, err)
}

func TestNewRedisClientDisabled(t *testing.T) {
	client, err := NewRedisClient(nil, config.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Nil(t, NewPolicyBus(client, zaptest.NewLogger(t)))
}

func TestNilBus(t *testing.T) {
	var bus *Bus
	assert.ErrorIs(t, bus.Publish(context.Background(), "7"), ErrBusUnavailable)
	_, err := bus.Subscribe(context.Background(), func(string) {})
	assert.ErrorIs(t, err, ErrBusUnavailable)
}

func TestBusDeliversToEverySubscriber(t *testing.T) {
	client := newRedis(t)
	ctx := context.Background()

	var mu sync.Mutex
	got := map[string][]string{}
	subscribe := func(name string) {
		stop, err := NewBus(client, PolicyChannel, zaptest.NewLogger(t)).Subscribe(ctx, func(key string) {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], key)
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = stop() })
	}
	subscribe("a")
	subscribe("b")

	bus := NewPolicyBus(client, zaptest.NewLogger(t))
	require.NotNil(t, bus)
	require.NoError(t, bus.Publish(ctx, "42"))
	require.NoError(t, bus.Publish(ctx, " "))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["a"]) == 1 && len(got["b"]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"42"}, got["a"])
	assert.Equal(t, []string{"42"}, got["b"])
}
