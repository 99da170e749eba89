package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"auxilium-api/internal/model"
)

// Refresh-token half of credentialTx. Only hashes are stored.

func (t *credentialTx) InsertRefreshToken(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		userID, tokenHash, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (t *credentialTx) FindActiveRefreshToken(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var s model.RefreshSession
	err := t.q.QueryRow(ctx,
		`SELECT rt.user_id, rt.token_hash, rt.expires_at,
		        u.id, u.email_address, u.password_hash, u.is_admin, u.allow_login
		 FROM refresh_tokens rt
		 JOIN users u ON u.id = rt.user_id
		 WHERE rt.token_hash = $1 AND rt.expires_at > now()`, tokenHash).
		Scan(&s.UserID, &s.TokenHash, &s.ExpiresAt,
			&s.User.ID, &s.User.EmailAddress, &s.User.PasswordHash, &s.User.IsAdmin, &s.User.AllowLogin)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshSession{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshSession{}, fmt.Errorf("find refresh token: %w", err)
	}
	return s, nil
}

// RotateRefreshToken swaps the stored hash in place. The conditional update is the
// serialization point for concurrent refreshes: the loser re-evaluates the WHERE clause
// after the winner commits and matches zero rows.
func (t *credentialTx) RotateRefreshToken(ctx context.Context, oldHash string, newHash string, newExpiresAt time.Time) (bool, error) {
	tag, err := t.q.Exec(ctx,
		`UPDATE refresh_tokens
		 SET token_hash = $2, expires_at = $3
		 WHERE token_hash = $1 AND expires_at > now()`,
		oldHash, newHash, newExpiresAt)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *credentialTx) DeleteRefreshTokensForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := t.q.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *credentialTx) DeleteExpiredRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error) {
	tag, err := t.q.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1 AND expires_at <= $2`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
