package repository

import (
	"context"
	"database/sql"
)

// ProfileRepo manages the companion profile rows that give the client roster
// an email to display.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// EnsureExists creates the profile for a user if it is absent.  An existing
// row is left untouched, so repeated calls are harmless.
func (r *ProfileRepo) EnsureExists(ctx context.Context, userID, email string) error {
	const q = `INSERT IGNORE INTO profiles (id, email, updated_at) VALUES (?, ?, UTC_TIMESTAMP())`
	_, err := r.db.ExecContext(ctx, q, userID, NormalizeEmail(email))
	return err
}
