package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/unclutter/internal/common"
	"github.com/Veraticus/unclutter/internal/model"
)

// Get retrieves a credential by session id. Expired credentials are deleted and
// reported as common.ErrNotFound.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*model.Credential, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		cred        model.Credential
		tokenExpiry sql.NullTime
		expiresAt   sql.NullTime
		createdAt   sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, access_token, refresh_token, token_type, token_expiry, expires_at, created_at
		FROM credentials
		WHERE id = ?
	`, id).Scan(
		&cred.ID,
		&cred.Email,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.TokenType,
		&tokenExpiry,
		&expiresAt,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("credential %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	cred.TokenExpiry = tokenExpiry.Time
	cred.ExpiresAt = expiresAt.Time
	cred.CreatedAt = createdAt.Time

	if cred.Expired(s.now()) {
		if delErr := s.Delete(ctx, id); delErr != nil {
			return nil, delErr
		}
		return nil, fmt.Errorf("credential %s: %w", id, common.ErrNotFound)
	}

	return &cred, nil
}

// Put inserts or replaces a credential.
func (s *SQLiteStorage) Put(ctx context.Context, cred *model.Credential) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCredential(cred); err != nil {
		return err
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, email, access_token, refresh_token, token_type, token_expiry, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			token_expiry = excluded.token_expiry,
			expires_at = excluded.expires_at
	`,
		cred.ID,
		cred.Email,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		nullTime(cred.TokenExpiry),
		nullTime(cred.ExpiresAt),
		cred.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Delete removes a credential. Deleting an unknown id is not an error.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// PurgeExpired deletes every credential whose session has lapsed.
func (s *SQLiteStorage) PurgeExpired(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM credentials
		WHERE expires_at IS NOT NULL AND expires_at <= ?
	`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge credentials: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged credentials: %w", err)
	}
	return int(n), nil
}

// CountCredentials returns the number of stored credentials, expired or not.
func (s *SQLiteStorage) CountCredentials(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count credentials: %w", err)
	}
	return n, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
