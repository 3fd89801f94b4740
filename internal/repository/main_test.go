package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB returns a gorm handle speaking Postgres SQL to sqlmock.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLiteDB opens a migrated SQLite database private to the test.
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{
		DBDriver:     "sqlite",
		DBSQLitePath: filepath.Join(t.TempDir(), "repo.db"),
		Env:          "test",
	}
	db, err := database.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{ClerkID: "clerk_" + name, Username: name, Avatar: name + ".png"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedPost(t *testing.T, db *gorm.DB, author models.User, title string, at time.Time) models.Post {
	t.Helper()
	post := models.Post{Title: title, Content: title + " body", AuthorID: author.ID, CreatedAt: at}
	require.NoError(t, db.Omit("Author", "Images").Create(&post).Error)
	return post
}

// toggleConcurrently runs toggle from n goroutines at once and returns how
// many calls reported the row present and absent afterwards.
func toggleConcurrently(t *testing.T, n int, toggle func() (bool, error)) (on, off int) {
	t.Helper()
	results := make([]bool, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = toggle()
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i], "toggle %d", i)
		if results[i] {
			on++
		} else {
			off++
		}
	}
	return on, off
}
