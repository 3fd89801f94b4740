package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"quill/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	existing := uuid.New()
	missing := uuid.New()

	tests := []struct {
		name         string
		userID       uuid.UUID
		mockBehavior func()
		expectedName string
		expectedCode string
	}{
		{
			name:   "Success",
			userID: existing,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "clerk_id", "username"}).
					AddRow(existing.String(), "user_1", "alice")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(existing, 1).
					WillReturnRows(rows)
			},
			expectedName: "alice",
		},
		{
			name:   "Not Found",
			userID: missing,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
					WithArgs(missing, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: existing,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
					WithArgs(existing, 1).
					WillReturnError(errors.New("connection timeout"))
			},
			expectedCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedCode != "" {
				assert.True(t, models.HasCode(err, tt.expectedCode), "got %v", err)
				assert.Nil(t, user)
			} else if assert.NoError(t, err) {
				assert.Equal(t, tt.expectedName, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_Sync(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	email := "alice@example.com"
	created, isNew, err := repo.Sync(ctx, &models.User{ClerkID: "user_a", Username: "alice", Email: &email, Avatar: "a.png"})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, uuid.Nil, created.ID)

	updated, isNew, err := repo.Sync(ctx, &models.User{ClerkID: "user_a", Username: "alice2"})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, "a.png", updated.Avatar, "avatar is kept when not supplied")
	require.NotNil(t, updated.Email)
	assert.Equal(t, email, *updated.Email)

	_, _, err = repo.Sync(ctx, &models.User{ClerkID: "user_b", Username: "alice2"})
	assert.True(t, models.HasCode(err, models.CodeBadRequest), "duplicate username: %v", err)
}

func TestUserRepository_GetByClerkID(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	_, err := repo.GetByClerkID(ctx, "nobody")
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	alice := seedUser(t, db, "alice")
	got, err := repo.GetByClerkID(ctx, alice.ClerkID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
}

func TestUserRepository_UpdateBio(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	user, err := repo.UpdateBio(ctx, alice.ID, "writes about go")
	require.NoError(t, err)
	assert.Equal(t, "writes about go", user.Bio)

	_, err = repo.UpdateBio(ctx, uuid.New(), "x")
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	ok, err := repo.Exists(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
