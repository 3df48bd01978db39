package kvstore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sqlfabric/fabric/pkg/config"
	"github.com/sqlfabric/fabric/pkg/kvstore"
	"github.com/sqlfabric/fabric/pkg/testhelpers"
)

func redisStore(t *testing.T) *kvstore.Redis {
	t.Helper()
	tr := testhelpers.GetTestRedis(t)

	host, portStr, err := net.SplitHostPort(tr.Addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	store := kvstore.NewRedis(&config.RedisConfig{
		Host:               host,
		Port:               port,
		DialTimeoutSeconds: 5,
		OpTimeoutSeconds:   5,
	}, zap.NewNop())
	require.True(t, store.Available())
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisRoundTrip(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("it:%d:roundtrip", time.Now().UnixNano())

	require.NoError(t, store.Set(ctx, key, "value"))
	value, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "value", value)

	deleted, err := store.Delete(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, found, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisTTLSemantics(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("it:%d:ttl", time.Now().UnixNano())

	require.NoError(t, store.SetEx(ctx, key, time.Hour, "v"))
	ttl, err := store.TTL(ctx, key)
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	// ExpireNX must not reset an existing expiry.
	set, err := store.ExpireNX(ctx, key, 2*time.Hour)
	require.NoError(t, err)
	assert.False(t, set)

	noTTLKey := key + ":persistent"
	require.NoError(t, store.Set(ctx, noTTLKey, "v"))
	ttl, err = store.TTL(ctx, noTTLKey)
	require.NoError(t, err)
	assert.Equal(t, kvstore.TTLNone, ttl)

	ttl, err = store.TTL(ctx, key+":missing")
	require.NoError(t, err)
	assert.Equal(t, kvstore.TTLMissing, ttl)

	t.Cleanup(func() { _, _ = store.Delete(ctx, key, noTTLKey) })
}

func TestRedisListOps(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("it:%d:list", time.Now().UnixNano())
	t.Cleanup(func() { _, _ = store.Delete(ctx, key) })

	for i := 0; i < 5; i++ {
		require.NoError(t, store.LPush(ctx, key, fmt.Sprintf("v%d", i)))
	}
	require.NoError(t, store.LTrim(ctx, key, 0, 2))

	items, err := store.LRange(ctx, key, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"v4", "v3", "v2"}, items)

	n, err := store.LLen(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestRedisLPushCapped(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("it:%d:capped", time.Now().UnixNano())
	t.Cleanup(func() { _, _ = store.Delete(ctx, key) })

	for i := 0; i < 5; i++ {
		require.NoError(t, store.LPushCapped(ctx, key, 3, time.Hour, fmt.Sprintf("v%d", i)))
	}

	items, err := store.LRange(ctx, key, 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"v4", "v3", "v2"}, items)

	// Expiry is NX: established by the first push, untouched after.
	ttl, err := store.TTL(ctx, key)
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Hour)
}

func TestRedisUpdateConcurrentAppends(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("it:%d:update", time.Now().UnixNano())
	t.Cleanup(func() { _, _ = store.Delete(ctx, key) })

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.Update(ctx, key, func(current string, found bool) (string, time.Duration, error) {
				var entries []int
				if found {
					if err := json.Unmarshal([]byte(current), &entries); err != nil {
						return "", 0, err
					}
				}
				entries = append(entries, n)
				raw, err := json.Marshal(entries)
				return string(raw), time.Hour, err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	value, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	var entries []int
	require.NoError(t, json.Unmarshal([]byte(value), &entries))
	// No lost updates under contention.
	assert.Len(t, entries, writers)
}

func TestRedisKeysPattern(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	prefix := fmt.Sprintf("it:%d:keys", time.Now().UnixNano())

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("%s:%d", prefix, i), "v"))
	}
	t.Cleanup(func() {
		keys, _ := store.Keys(ctx, prefix+":*")
		_, _ = store.Delete(ctx, keys...)
	})

	keys, err := store.Keys(ctx, prefix+":*")
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}
