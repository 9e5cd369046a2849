// Package sqlxstore reads and writes the login credential with
// hand-written SQL through sqlx.
package sqlxstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/frahmantamala/kakeibo/internal/auth"
	"github.com/jmoiron/sqlx"
)

type CredentialRepository struct {
	db *sqlx.DB
}

func NewCredentialRepository(db *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) FindByUsername(ctx context.Context, username string) (*auth.Credential, error) {
	var cred auth.Credential
	query := r.db.Rebind(`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`)

	if err := r.db.GetContext(ctx, &cred, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrCredentialNotFound
		}
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts the credential and reads it back, so created_at comes
// from the database default on every dialect.
func (r *CredentialRepository) Create(ctx context.Context, username, passwordHash string) (*auth.Credential, error) {
	query := r.db.Rebind(`INSERT INTO users (username, password_hash) VALUES (?, ?)`)

	if _, err := r.db.ExecContext(ctx, query, username, passwordHash); err != nil {
		return nil, err
	}
	return r.FindByUsername(ctx, username)
}

func (r *CredentialRepository) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	query := r.db.Rebind(`UPDATE users SET password_hash = ? WHERE username = ?`)

	result, err := r.db.ExecContext(ctx, query, passwordHash, username)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrCredentialNotFound
	}
	return nil
}
