package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-electives-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, active, last_login`

// UserRepository stores the staff accounts allowed on the admin endpoints.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns the staff account for email. sql.ErrNoRows is returned
// unwrapped when nobody matches.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, normalizeEmail(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// UpsertStaff creates the account or, when the email is taken, resets its
// name, role, password and reactivates it. The stored id is written back.
func (r *UserRepository) UpsertStaff(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT ((LOWER(email))) DO UPDATE
SET password_hash = EXCLUDED.password_hash, full_name = EXCLUDED.full_name, role = EXCLUDED.role, active = TRUE
RETURNING id`
	var id string
	if err := r.db.GetContext(ctx, &id, query, user.ID, user.Email, user.PasswordHash, user.FullName, user.Role); err != nil {
		return fmt.Errorf("upsert staff %s: %w", user.Email, err)
	}
	user.ID = id
	user.Active = true
	return nil
}

// UpdateLastLogin stamps a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
