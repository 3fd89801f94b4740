package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quill/internal/database"
	"quill/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyExists is returned when an insert hits a unique constraint.
var ErrAlreadyExists = errors.New("record already exists")

// toggleRow flips the presence of a join row. The existing row is deleted
// first; only when nothing was deleted is newRow inserted. Both statements run
// in one transaction and the insert ignores conflicts, so concurrent toggles
// can never leave duplicate rows behind.
func toggleRow(ctx context.Context, db *gorm.DB, model, newRow any, where string, args ...any) (bool, error) {
	active := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(where, args...).Delete(model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(newRow).Error; err != nil {
			return err
		}
		active = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle: %w", err)
	}
	return active, nil
}

// insertRow creates row and maps unique violations onto ErrAlreadyExists.
func insertRow(ctx context.Context, db *gorm.DB, row any) error {
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// deleteRows reports whether anything matched.
func deleteRows(ctx context.Context, db *gorm.DB, model any, where string, args ...any) (bool, error) {
	res := db.WithContext(ctx).Where(where, args...).Delete(model)
	if res.Error != nil {
		return false, fmt.Errorf("delete: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func track(operation, table string) func() {
	return observability.TrackQuery(operation, table)
}

// likeOperator picks a case-insensitive LIKE for the active dialect.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching kw literally anywhere.
// Queries using it must declare ESCAPE '\'.
func containsPattern(kw string) string {
	return "%" + likeEscaper.Replace(kw) + "%"
}

func likeOperator(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}
