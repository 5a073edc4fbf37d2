package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/utility-audit-portal/internal/model"
)

// RoleRepo reads and assigns user roles.  Assignments are administrative;
// the portal itself only reads them.
type RoleRepo struct {
	db *sql.DB
}

func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{db: db}
}

// Resolve returns the role of a user.  Every call hits the database.  A user
// without a role row resolves to RoleNone with a nil error.
func (r *RoleRepo) Resolve(ctx context.Context, userID string) (model.Role, error) {
	var role string
	err := r.db.QueryRowContext(ctx, `SELECT role FROM user_roles WHERE user_id = ?`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoleNone, nil
	}
	if err != nil {
		return model.RoleNone, err
	}
	if rl := model.Role(role); rl.Valid() {
		return rl, nil
	}
	return model.RoleNone, nil
}

// Assign sets the role of a user, replacing any previous assignment.
func (r *RoleRepo) Assign(ctx context.Context, userID string, role model.Role) error {
	const q = `INSERT INTO user_roles (user_id, role) VALUES (?, ?)
	           ON DUPLICATE KEY UPDATE role = VALUES(role)`
	_, err := r.db.ExecContext(ctx, q, userID, string(role))
	return err
}

// CountOwners returns how many users hold the owner role.
func (r *RoleRepo) CountOwners(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_roles WHERE role = 'owner'`).Scan(&n)
	return n, err
}

// RosterRepo lists selectable clients through the client_roster view.
type RosterRepo struct {
	db *sql.DB
}

func NewRosterRepo(db *sql.DB) *RosterRepo {
	return &RosterRepo{db: db}
}

// ListClients returns every client that has a profile, ordered by email.
func (r *RosterRepo) ListClients(ctx context.Context) ([]model.RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, email FROM client_roster ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.RosterEntry{}
	for rows.Next() {
		var e model.RosterEntry
		if err := rows.Scan(&e.ID, &e.Email); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
