package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
		mr.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedThing) func(context.Context) error {
		return func(context.Context) error {
			calls++
			*dest = cachedThing{Name: "post", Count: 3}
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, "post:1:agg", &first, time.Minute, fetch(&first)))
	assert.Equal(t, 3, first.Count)
	assert.True(t, mr.Exists("post:1:agg"))

	var second cachedThing
	require.NoError(t, Aside(ctx, "post:1:agg", &second, time.Minute, fetch(&second)))
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	var third cachedThing
	require.NoError(t, Aside(ctx, "post:1:agg", &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := withMiniredis(t)

	var dest cachedThing
	err := Aside(context.Background(), "post:2:agg", &dest, time.Minute, func(context.Context) error {
		return errors.New("db down")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("post:2:agg"))
}

func TestAside_WithoutRedis(t *testing.T) {
	SetClient(nil)

	var dest cachedThing
	err := Aside(context.Background(), "post:3:agg", &dest, time.Minute, func(context.Context) error {
		dest.Name = "fresh"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", dest.Name)
}

func TestAside_CorruptEntryFallsBackToFetch(t *testing.T) {
	mr := withMiniredis(t)
	require.NoError(t, mr.Set("post:4:agg", "{not json"))

	var dest cachedThing
	err := Aside(context.Background(), "post:4:agg", &dest, time.Minute, func(context.Context) error {
		dest.Name = "rebuilt"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", dest.Name)
}

func TestInvalidatePost(t *testing.T) {
	mr := withMiniredis(t)
	id := uuid.New()
	require.NoError(t, mr.Set(PostKey(id), "{}"))
	require.NoError(t, mr.Set(PostStatsKey(id), "{}"))

	InvalidatePost(context.Background(), id)
	assert.False(t, mr.Exists(PostKey(id)))
	assert.False(t, mr.Exists(PostStatsKey(id)))
}

func TestKeyFamily(t *testing.T) {
	assert.Equal(t, "post:agg", keyFamily(PostKey(uuid.New())))
	assert.Equal(t, "user:profile", keyFamily(UserKey("user_2abc")))
	assert.Equal(t, "user", keyFamily("user:u1"))
	assert.Equal(t, "plain", keyFamily("plain"))
}

func TestLookupAndStore(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	var miss cachedThing
	assert.False(t, Lookup(ctx, "post:5:agg", &miss))

	Store(ctx, "post:5:agg", cachedThing{Name: "stored", Count: 7}, time.Minute)
	assert.True(t, mr.Exists("post:5:agg"))

	var hit cachedThing
	require.True(t, Lookup(ctx, "post:5:agg", &hit))
	assert.Equal(t, 7, hit.Count)
}
