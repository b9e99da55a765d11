package repository

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/kah-digital/agency-backend/internal/auth/domain"
)

// UserRepo reads admin accounts from Postgres.
type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

// FindByEmail returns the account for the given email, case-insensitively.
// A missing account maps to ErrInvalidCredentials so login responses never
// reveal which half of the credential pair failed.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	const q = `
SELECT id::text, email, password_hash, role, created_at
FROM admin_users
WHERE lower(email) = lower($1);
`
	var u domain.AdminUser
	err := r.db.QueryRowContext(ctx, q, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
