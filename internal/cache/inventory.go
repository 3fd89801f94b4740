package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/middleware"

	"github.com/google/uuid"
)

const (
	PostKeyPrefix        = "post:%s:agg"
	UserKeyPrefix        = "user:%s:profile"
	FollowStatsKeyPrefix = "user:%s:follow_stats"
	PostStatsKeyPrefix   = "post:%s:stats"
)

const (
	PostTTL        = 2 * time.Minute
	PostStatsTTL   = 30 * time.Second
	UserTTL        = 5 * time.Minute
	FollowStatsTTL = time.Minute
)

// PostKey caches the viewer-independent part of an aggregated post.
func PostKey(postID uuid.UUID) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func PostStatsKey(postID uuid.UUID) string {
	return fmt.Sprintf(PostStatsKeyPrefix, postID)
}

// UserKey caches the user row resolved from an external identity.
func UserKey(clerkID string) string {
	return fmt.Sprintf(UserKeyPrefix, clerkID)
}

func FollowStatsKey(userID uuid.UUID) string {
	return fmt.Sprintf(FollowStatsKeyPrefix, userID)
}

// Invalidate deletes keys; failures are logged and otherwise ignored.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys),
			slog.String("error", err.Error()),
		)
	}
}

// InvalidatePost drops every cached projection of a post.
func InvalidatePost(ctx context.Context, postID uuid.UUID) {
	Invalidate(ctx, PostKey(postID), PostStatsKey(postID))
}

func InvalidateUser(ctx context.Context, clerkID string) {
	Invalidate(ctx, UserKey(clerkID))
}

// InvalidateFollowStats drops the cached counters of both ends of a follow edge.
func InvalidateFollowStats(ctx context.Context, userIDs ...uuid.UUID) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, FollowStatsKey(id))
	}
	Invalidate(ctx, keys...)
}
