package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hupe1980/payroute/session"
	"github.com/hupe1980/payroute/session/redis"
	"github.com/hupe1980/payroute/session/sessiontest"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newStore(t)
	sessiontest.RunStoreContract(t, store)
}

func TestRedisStore_Limit(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t, redis.WithLimit(2))

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Append(ctx, "s", session.Turn{Input: fmt.Sprint(i)}))
	}

	turns, err := store.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "2", turns[0].Input)
	assert.Equal(t, "3", turns[1].Input)
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t, redis.WithPrefix("test:"), redis.WithTTL(time.Minute))

	require.NoError(t, store.Append(ctx, "s", session.Turn{Input: "hello"}))

	assert.True(t, mr.Exists("test:s"))
	assert.True(t, mr.Exists("test:index"))
	assert.Equal(t, time.Minute, mr.TTL("test:s"))

	mr.FastForward(2 * time.Minute)

	_, err := store.History(ctx, "s")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRedisStore_Ping(t *testing.T) {
	store, mr := newStore(t)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
