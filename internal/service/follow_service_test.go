package service

import (
	"context"
	"testing"
	"time"

	"quill/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowService_Self(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")

	assertCode(t, h.follows.Follow(ctx, alice.ClerkID, alice.ID), models.CodeBadRequest)
	_, err := h.follows.Toggle(ctx, alice.ClerkID, alice.ID)
	assertCode(t, err, models.CodeBadRequest)
	assert.Zero(t, h.count(t, &models.Follow{}, "1 = 1"))
}

func TestFollowService_Toggle(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")

	res, err := h.follows.Toggle(ctx, alice.ClerkID, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Active)

	evt := h.sink.last()
	assert.Equal(t, models.EventUserFollowed, evt.Type)
	assert.Equal(t, bob.ClerkID, evt.Recipient)

	following, err := h.follows.IsFollowing(ctx, alice.ClerkID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	res, err = h.follows.Toggle(ctx, alice.ClerkID, bob.ID)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, models.EventUserUnfollowed, h.sink.last().Type)

	_, err = h.follows.Toggle(ctx, alice.ClerkID, uuid.New())
	assertCode(t, err, models.CodeNotFound)
}

func TestFollowService_FollowAndUnfollow(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")

	require.NoError(t, h.follows.Follow(ctx, alice.ClerkID, bob.ID))
	assertCode(t, h.follows.Follow(ctx, alice.ClerkID, bob.ID), models.CodeBadRequest)

	require.NoError(t, h.follows.Unfollow(ctx, alice.ClerkID, bob.ID))
	assertCode(t, h.follows.Unfollow(ctx, alice.ClerkID, bob.ID), models.CodeNotFound)
}

func TestFollowService_IsFollowing_UnsyncedCaller(t *testing.T) {
	h := newHarness(t, "")
	bob := h.seedUser(t, "bob")

	following, err := h.follows.IsFollowing(context.Background(), "clerk_ghost", bob.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestFollowService_ListsAndStats(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()
	alice := h.seedUser(t, "alice")
	bob := h.seedUser(t, "bob")
	carol := h.seedUser(t, "carol")

	base := time.Now().Add(-time.Hour)
	require.NoError(t, h.db.Create(&models.Follow{FollowerID: bob.ID, FollowingID: alice.ID, CreatedAt: base}).Error)
	require.NoError(t, h.db.Create(&models.Follow{FollowerID: carol.ID, FollowingID: alice.ID, CreatedAt: base.Add(time.Minute)}).Error)
	require.NoError(t, h.db.Create(&models.Follow{FollowerID: alice.ID, FollowingID: carol.ID, CreatedAt: base}).Error)

	followers, err := h.follows.ListFollowers(ctx, ListFollowsInput{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, followers, 2)
	assert.Equal(t, "carol", followers[0].Username)
	assert.Equal(t, "bob", followers[1].Username)

	following, err := h.follows.ListFollowing(ctx, ListFollowsInput{UserID: alice.ID})
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, carol.ID, following[0].ID)

	stats, err := h.follows.Stats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStats{FollowingCount: 1, FollowersCount: 2}, *stats)

	_, err = h.follows.Stats(ctx, uuid.New())
	assertCode(t, err, models.CodeNotFound)
	_, err = h.follows.ListFollowers(ctx, ListFollowsInput{UserID: uuid.New()})
	assertCode(t, err, models.CodeNotFound)
	_, err = h.follows.ListFollowing(ctx, ListFollowsInput{UserID: alice.ID, Offset: -1})
	assertCode(t, err, models.CodeValidation)
}
