package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aaal/envanter/internal/model"
)

const userColumns = `id, first_name, last_name, email, password_hash, role, created_at`

// CreateUser inserts a user, assigning its ID and creation time.
func CreateUser(ctx context.Context, db *sql.DB, u *model.User) (*model.User, error) {
	u.ID = NewID()
	u.CreatedAt = time.Now().UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, email, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, nullString(u.Email), u.PasswordHash, string(u.Role), u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, db, u.ID)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, db *sql.DB, id string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// GetUserByName returns a user by first and last name, ignoring case.
func GetUserByName(ctx context.Context, db *sql.DB, firstName, lastName string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(first_name) = lower(?) AND lower(last_name) = lower(?)`,
		firstName, lastName,
	))
	if err != nil {
		return nil, fmt.Errorf("getting user by name: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email address.
func GetUserByEmail(ctx context.Context, db *sql.DB, email string) (*model.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// ListUsers returns all users, oldest first.
func ListUsers(ctx context.Context, db *sql.DB) ([]model.User, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// UserUpdate holds the fields of a partial user update. Empty fields
// are left unchanged.
type UserUpdate struct {
	FirstName    string
	LastName     string
	Email        string
	Role         model.Role
	PasswordHash string
}

// UpdateUser merges the non-empty fields of upd into the user.
func UpdateUser(ctx context.Context, db *sql.DB, id string, upd UserUpdate) (*model.User, error) {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET
		     first_name    = COALESCE(NULLIF(?, ''), first_name),
		     last_name     = COALESCE(NULLIF(?, ''), last_name),
		     email         = COALESCE(NULLIF(?, ''), email),
		     role          = COALESCE(NULLIF(?, ''), role),
		     password_hash = COALESCE(NULLIF(?, ''), password_hash)
		 WHERE id = ?`,
		upd.FirstName, upd.LastName, upd.Email, string(upd.Role), upd.PasswordHash, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return GetUser(ctx, db, id)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, db *sql.DB, id, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser removes a user. It reports whether a row was deleted.
func DeleteUser(ctx context.Context, db *sql.DB, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting user: %w", err)
	}
	return affected(result)
}

// CountUsers returns the number of users.
func CountUsers(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var email sql.NullString
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	return u, nil
}
