// Copyright (c) 2026 Sasayaki. All rights reserved.
// Author: k.hayashi.dev@gmail.com

package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khayashi/sasayaki/internal/platform/database/schema"
	"github.com/khayashi/sasayaki/internal/platform/dberr"
)

// userColumns is the canonical select list shared by every lookup, in the
// order queryOne scans.
var userColumns = strings.Join(schema.Users.Columns(), ", ")

// PostgresUserRepository implements the UserRepository interface using pgx.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] values to avoid leaking storage details upward.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
Create persists a new user record into the users table.

Description: Inserts the full credential state in one statement. The
activation digest rides in the same insert as the row itself, so a user can
never exist without one.

Parameters:
  - ctx: context.Context
  - user: *User (entity to persist; PasswordDigest and ActivationDigest set)

Returns:
  - error: Database constraint violations or connectivity errors
*/
func (repository *PostgresUserRepository) Create(ctx context.Context, user *User) error {
	const query = `
		INSERT INTO users (
			id, name, email, password_digest, activation_digest, activated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = NormalizeEmail(user.Email)

	_, err := repository.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordDigest,
		user.ActivationDigest,
		user.Activated,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		// The uniqueness pre-check in the service can race; the constraint
		// is the source of truth.
		if dberr.IsUniqueViolation(err) {
			return dberr.Wrap(err, "User")
		}
		return fmt.Errorf("postgres_user_repo_create_failed: %w", err)
	}

	return nil
}

/*
FindByID retrieves a user record by primary key.

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		userColumns, schema.Users.Table, schema.Users.ID)
	return repository.queryOne(ctx, query, id)
}

/*
FindByEmail retrieves a user record by email, compared case-insensitively
against the lowercased stored value.

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		userColumns, schema.Users.Table, schema.Users.Email)
	return repository.queryOne(ctx, query, NormalizeEmail(email))
}

// queryOne runs a single-row lookup and hydrates the entity.
func (repository *PostgresUserRepository) queryOne(ctx context.Context, query string, args ...any) (*User, error) {
	user := &User{}
	err := repository.pool.QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordDigest,
		&user.RememberDigest,
		&user.ActivationDigest,
		&user.Activated,
		&user.ActivatedAt,
		&user.ResetDigest,
		&user.ResetSentAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.Wrap(err, "User")
		}
		return nil, fmt.Errorf("postgres_user_repo_find_failed: %w", err)
	}

	return user, nil
}

/*
UpdateProfile persists changes to the mutable profile fields (name, email),
refreshing updated_at.
*/
func (repository *PostgresUserRepository) UpdateProfile(ctx context.Context, user *User) error {
	const query = `
		UPDATE users
		SET name = $2, email = $3, updated_at = $4
		WHERE id = $1`

	user.UpdatedAt = time.Now()
	user.Email = NormalizeEmail(user.Email)

	_, err := repository.pool.Exec(ctx, query, user.ID, user.Name, user.Email, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_profile_failed: %w", err)
	}

	return nil
}

/*
UpdatePassword updates only the password digest for a specific user.
*/
func (repository *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, newDigest string) error {
	const query = `
		UPDATE users
		SET password_digest = $2, updated_at = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID, newDigest, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_password_failed: %w", err)
	}

	return nil
}

/*
UpdateRememberDigest writes (or clears, when digest is nil) the single
remember-me slot.
*/
func (repository *PostgresUserRepository) UpdateRememberDigest(ctx context.Context, userID string, digest *string) error {
	const query = `
		UPDATE users
		SET remember_digest = $2, updated_at = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID, digest, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_remember_failed: %w", err)
	}

	return nil
}

/*
MarkActivated sets activated and activated_at together.

Description: One statement carries both columns, so the pair can never be
observed half-written — the row update is the atomicity boundary.
*/
func (repository *PostgresUserRepository) MarkActivated(ctx context.Context, userID string, activatedAt time.Time) error {
	const query = `
		UPDATE users
		SET activated = TRUE, activated_at = $2, updated_at = $2
		WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID, activatedAt)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_mark_activated_failed: %w", err)
	}

	return nil
}

/*
UpdateResetDigest writes the reset digest and its issuance timestamp in one
statement. Concurrent reset requests for the same user resolve by last
writer wins; no merge logic exists or is needed.
*/
func (repository *PostgresUserRepository) UpdateResetDigest(ctx context.Context, userID, digest string, sentAt time.Time) error {
	const query = `
		UPDATE users
		SET reset_digest = $2, reset_sent_at = $3, updated_at = $3
		WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID, digest, sentAt)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_update_reset_failed: %w", err)
	}

	return nil
}

/*
ClearResetDigest nulls the reset slot and its timestamp after the reset
token has been consumed.
*/
func (repository *PostgresUserRepository) ClearResetDigest(ctx context.Context, userID string) error {
	const query = `
		UPDATE users
		SET reset_digest = NULL, reset_sent_at = NULL, updated_at = $2
		WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return fmt.Errorf("postgres_user_repo_clear_reset_failed: %w", err)
	}

	return nil
}

/*
Delete removes the account row. FK cascades defined in the schema take the
owned content with it.
*/
func (repository *PostgresUserRepository) Delete(ctx context.Context, userID string) error {
	const query = `DELETE FROM users WHERE id = $1`

	_, err := repository.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("postgres_user_repo_delete_failed: %w", err)
	}

	return nil
}
