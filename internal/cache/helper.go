package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"quill/internal/middleware"
	"quill/internal/observability"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	b, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Lookup reads key into dest and records the hit or miss. Read errors are
// logged and count as misses.
func Lookup(ctx context.Context, key string, dest any) bool {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
	result := "miss"
	if found {
		result = "hit"
	}
	observability.CacheLookups.WithLabelValues(keyFamily(key), result).Inc()
	return found
}

// Store writes v under key; failures are logged and otherwise ignored.
func Store(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := SetJSON(ctx, key, v, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// Aside tries Redis first; on a miss it calls fetch, which must populate dest,
// and stores dest with ttl. Cache errors never fail the call: the source of
// truth is always consulted instead.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func(context.Context) error) error {
	if Lookup(ctx, key, dest) {
		return nil
	}
	if err := fetch(ctx); err != nil {
		return err
	}
	Store(ctx, key, dest, ttl)
	return nil
}

// keyFamily keeps metric labels bounded: "post:<id>:agg" becomes "post:agg".
func keyFamily(key string) string {
	parts := strings.Split(key, ":")
	switch len(parts) {
	case 1:
		return key
	case 2:
		return parts[0]
	default:
		return parts[0] + ":" + parts[len(parts)-1]
	}
}
