package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"attentid/internal/identity"
	"attentid/pkg/platform/sentinel"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, user identity.User) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			active = EXCLUDED.active
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Created, user.Active,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID string) (identity.User, error) {
	return s.findBy(ctx, "id", userID)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (identity.User, error) {
	return s.findBy(ctx, "email", email)
}

func (s *PostgresStore) findBy(ctx context.Context, column, value string) (identity.User, error) {
	query := `
		SELECT id, email, name, password_hash, created, active
		FROM users
		WHERE ` + column + ` = $1
	`
	var user identity.User
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Created, &user.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.User{}, sentinel.ErrNotFound
		}
		return identity.User{}, fmt.Errorf("find user by %s: %w", column, err)
	}
	return user, nil
}
