package database

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"quill/internal/middleware"

	"gorm.io/gorm"
)

// appliedMigration is one row of the schema_migrations ledger.
type appliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (appliedMigration) TableName() string { return "schema_migrations" }

type ledger struct{ db *gorm.DB }

func (l ledger) ensure(ctx context.Context) error {
	return l.db.WithContext(ctx).AutoMigrate(&appliedMigration{})
}

// versions lists applied versions in ascending order. A database that never
// ran a migration has no ledger yet and reports none.
func (l ledger) versions(ctx context.Context) ([]int, error) {
	db := l.db.WithContext(ctx)
	if !db.Migrator().HasTable(&appliedMigration{}) {
		return []int{}, nil
	}
	var out []int
	if err := db.Model(&appliedMigration{}).Order("version").Pluck("version", &out).Error; err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return out, nil
}

func (l ledger) apply(ctx context.Context, m Migration) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("migration %s: %w", m.String(), err)
		}
		return tx.Create(&appliedMigration{Version: m.Version, Name: m.Name}).Error
	})
}

func (l ledger) revert(ctx context.Context, m Migration) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("rollback %s: %w", m.String(), err)
		}
		return tx.Where("version = ?", m.Version).Delete(&appliedMigration{}).Error
	})
}

// pending returns the migrations of set missing from applied. A ledger
// entry without a matching migration means the binary is older than the
// database, which is an error.
func pending(applied []int, set []Migration) ([]Migration, error) {
	known := make(map[int]bool, len(set))
	for _, m := range set {
		known[m.Version] = true
	}
	var unknown []string
	for _, v := range applied {
		if !known[v] {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("schema_migrations has versions this build does not know: %s", strings.Join(unknown, ", "))
	}

	var out []Migration
	for _, m := range set {
		if !slices.Contains(applied, m.Version) {
			out = append(out, m)
		}
	}
	return out, nil
}

// AppliedVersions lists the SQL migrations recorded in the database.
func AppliedVersions(ctx context.Context, db *gorm.DB) ([]int, error) {
	return ledger{db}.versions(ctx)
}

// RunMigrations applies every embedded migration not yet recorded.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return migrateUp(ctx, db, migrations)
}

func migrateUp(ctx context.Context, db *gorm.DB, set []Migration) error {
	l := ledger{db}
	if err := l.ensure(ctx); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	applied, err := l.versions(ctx)
	if err != nil {
		return err
	}
	todo, err := pending(applied, set)
	if err != nil {
		return err
	}

	for _, m := range todo {
		start := time.Now()
		if err := l.apply(ctx, m); err != nil {
			return err
		}
		middleware.Logger.Info("Migration applied",
			slog.String("migration", m.String()),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}

// RollbackMigration runs the down script of an applied migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return migrateDown(ctx, db, migrations, version)
}

func migrateDown(ctx context.Context, db *gorm.DB, set []Migration, version int) error {
	idx := slices.IndexFunc(set, func(m Migration) bool { return m.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration version %d not found", version)
	}
	m := set[idx]

	l := ledger{db}
	applied, err := l.versions(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("migration %s has not been applied", m.String())
	}

	if err := l.revert(ctx, m); err != nil {
		return err
	}
	middleware.Logger.Info("Migration rolled back", slog.String("migration", m.String()))
	return nil
}
