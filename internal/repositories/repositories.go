// Package repositories implements sqlx persistence for user records and linked channels.
//
// Queries are written with "?" placeholders and rebound for the connected driver, so the same
// repositories serve both SQLite and PostgreSQL.
//
// Key Implementations:
//   - [UserRepository] : user records keyed by identity provider UID
//   - [ChannelRepository] : the YouTube channel linked to each user
//
// Lookups that find nothing return errors wrapping [shared.ErrNotFound]; inserts that collide with an
// existing record return errors wrapping [shared.ErrConflict].
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/shared"
	"github.com/jmoiron/sqlx"
)

var (
	_ models.Repository[*models.User]    = (*UserRepository)(nil)
	_ models.Repository[*models.Channel] = (*ChannelRepository)(nil)
)

// execAffecting runs query and fails with notFound when no row was touched.
func execAffecting(ctx context.Context, db *sqlx.DB, notFound error, query string, args ...any) error {
	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// getOne loads a single row into dest, mapping [sql.ErrNoRows] to notFound.
func getOne(ctx context.Context, db *sqlx.DB, dest any, notFound error, query string, args ...any) error {
	err := db.GetContext(ctx, dest, db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// insertError classifies a failed insert.
func insertError(kind, id string, err error) error {
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("%s %s: %w", kind, id, shared.ErrConflict)
	}
	return fmt.Errorf("failed to insert %s: %w", kind, err)
}
