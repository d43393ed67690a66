package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"madrasa/internal/apperrors"
	"madrasa/internal/store"
)

// TokenRepository persists refresh tokens in SQL.
type TokenRepository struct {
	db *store.DB
}

// NewTokenRepository creates a repo.
func NewTokenRepository(db *store.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// SaveRefreshToken records an issued token.
func (r *TokenRepository) SaveRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	query, args, err := r.db.Builder().Insert("refresh_tokens").
		Columns("token", "user_id", "expires_at").
		Values(token, userID, expiresAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build token insert: %w", err)
	}
	_, err = r.db.Client.ExecContext(ctx, query, args...)
	return err
}

// FindRefreshToken looks a token up.
func (r *TokenRepository) FindRefreshToken(ctx context.Context, token string) (string, time.Time, bool, error) {
	query, args, err := r.db.Builder().Select("user_id", "expires_at", "revoked").
		From("refresh_tokens").
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return "", time.Time{}, false, fmt.Errorf("build token query: %w", err)
	}
	var (
		userID  string
		expires time.Time
		revoked bool
	)
	err = r.db.Client.QueryRowContext(ctx, query, args...).Scan(&userID, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, false, apperrors.NotFound("refresh token not found")
	}
	return userID, expires, revoked, err
}

// RevokeRefreshToken marks a token revoked.
func (r *TokenRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	query, args, err := r.db.Builder().Update("refresh_tokens").
		Set("revoked", true).
		Where(squirrel.Eq{"token": token}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build token revoke: %w", err)
	}
	_, err = r.db.Client.ExecContext(ctx, query, args...)
	return err
}
