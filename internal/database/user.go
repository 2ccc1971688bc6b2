// internal/database/user.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/modiplay/modi-server/internal/auth"
)

// UsersSchema creates the users table. Guests have no credentials and no
// username uniqueness; claimed accounts get both.
const UsersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	username   TEXT NOT NULL,
	password   TEXT NOT NULL DEFAULT '',
	is_guest   BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (username) WHERE NOT is_guest;
`

// User is an account row. Password holds the argon2id hash, never plaintext.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Password string    `json:"-"`
	IsGuest  bool      `json:"isGuest"`
}

// Users wraps user persistence.
type Users struct {
	pool *pgxpool.Pool
}

// NewUsers wraps an existing pool.
func NewUsers(pool *pgxpool.Pool) *Users {
	return &Users{pool: pool}
}

// Migrate applies UsersSchema.
func (u *Users) Migrate(ctx context.Context) error {
	_, err := u.pool.Exec(ctx, UsersSchema)
	return err
}

// Create inserts a user, hashing the password when one is given. The ID is
// generated if unset.
func (u *Users) Create(ctx context.Context, user *User, password string) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if password != "" {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = hash
	}

	q := `INSERT INTO users (id, username, password, is_guest) VALUES ($1, $2, $3, $4)`
	err := pgx.BeginTxFunc(ctx, u.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, user.ID, user.Username, user.Password, user.IsGuest)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetByID fetches one user.
func (u *Users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	q := `SELECT id, username, password, is_guest FROM users WHERE id = $1`
	err := u.pool.QueryRow(ctx, q, id).Scan(&user.ID, &user.Username, &user.Password, &user.IsGuest)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername fetches one claimed (non-guest) user.
func (u *Users) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	q := `SELECT id, username, password, is_guest FROM users WHERE username = $1 AND NOT is_guest`
	err := u.pool.QueryRow(ctx, q, username).Scan(&user.ID, &user.Username, &user.Password, &user.IsGuest)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate verifies credentials and returns a signed session token.
func (u *Users) Authenticate(ctx context.Context, username, password string) (string, error) {
	user, err := u.GetByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("user not found or db error: %w", err)
	}

	match, err := auth.VerifyPassword(password, user.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateJWT(user.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create jwt: %w", err)
	}
	return token, nil
}
