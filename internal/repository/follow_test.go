package repository

import (
	"context"
	"testing"
	"time"

	"quill/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_ToggleAndExists(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	active, err := repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, active)

	following, err := repo.Exists(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	reverse, err := repo.Exists(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, reverse, "follows are directed")

	active, err = repo.Toggle(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestFollowRepository_ConcurrentToggleSettlesOnOneRow(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	on, off := toggleConcurrently(t, 20, func() (bool, error) {
		return repo.Toggle(ctx, alice.ID, bob.ID)
	})

	var n int64
	require.NoError(t, db.Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", alice.ID, bob.ID).Count(&n).Error)
	assert.LessOrEqual(t, n, int64(1))
	assert.Equal(t, int64(on-off), n)

	following, err := repo.Exists(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, n == 1, following)
}

func TestFollowRepository_AddRemove(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	require.NoError(t, repo.Add(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, repo.Add(ctx, alice.ID, bob.ID), ErrAlreadyExists)

	removed, err := repo.Remove(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestFollowRepository_ListsAndStats(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewFollowRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	base := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID, CreatedAt: base}).Error)
	require.NoError(t, db.Create(&models.Follow{FollowerID: alice.ID, FollowingID: carol.ID, CreatedAt: base.Add(time.Minute)}).Error)
	require.NoError(t, db.Create(&models.Follow{FollowerID: carol.ID, FollowingID: alice.ID, CreatedAt: base}).Error)

	following, err := repo.ListFollowing(ctx, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, following, 2)
	assert.Equal(t, carol.ID, following[0].ID)
	assert.Equal(t, "carol", following[0].Username)
	assert.Equal(t, bob.ID, following[1].ID)
	assert.False(t, following[0].FollowedAt.IsZero())

	followers, err := repo.ListFollowers(ctx, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, carol.ID, followers[0].ID)

	empty, err := repo.ListFollowers(ctx, bob.ID, 20, 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	stats, err := repo.Stats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowStats{FollowingCount: 2, FollowersCount: 1}, stats)
}
