// Package bootstrap connects the backing services shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/messaging"
	"quill/internal/middleware"
	"quill/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemo fills an empty database with demo content.
	SeedDemo bool
}

// Runtime holds the live connections. Redis and Bus are nil when the
// service runs without them.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
	Bus   *messaging.Publisher
}

// InitRuntime connects to the database, then Redis and NATS when configured.
// Only a database failure is fatal.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &Runtime{DB: db}

	if cfg.RedisURL != "" {
		// nil when unreachable
		rt.Redis = cache.InitRedis(ctx, cfg.RedisURL)
	}

	if cfg.NatsURL != "" {
		bus, err := messaging.Connect(cfg.NatsURL)
		if err != nil {
			middleware.Logger.Warn("NATS unavailable, continuing without event bus", slog.String("error", err.Error()))
		} else {
			rt.Bus = bus
		}
	}

	if opts.SeedDemo {
		if err := seedIfEmpty(ctx, db); err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return rt, nil
}

func seedIfEmpty(ctx context.Context, db *gorm.DB) error {
	var users int64
	if err := db.WithContext(ctx).Table("users").Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}
	_, err := seed.Seed(ctx, db, seed.Options{NumUsers: 10, NumPosts: 40})
	return err
}

// Close releases every connection. The server closes its own copies on
// shutdown; Close is for commands that exit without starting it.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	r.Bus.Close()
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	_ = database.Close(r.DB)
}
