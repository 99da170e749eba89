package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auxilium-api/internal/model"
)

const uniqueViolation = "23505"

// CredentialTx is the set of mutations available inside one scoped transaction.
type CredentialTx interface {
	FindByEmail(ctx context.Context, email string) (model.Credential, error)
	Insert(ctx context.Context, c model.Credential) error
	UpdateFlags(ctx context.Context, userID string, isAdmin *bool, allowLogin *bool) (model.Credential, error)

	InsertRefreshToken(ctx context.Context, userID string, tokenHash string, expiresAt time.Time) error
	FindActiveRefreshToken(ctx context.Context, tokenHash string) (model.RefreshSession, error)
	RotateRefreshToken(ctx context.Context, oldHash string, newHash string, newExpiresAt time.Time) (bool, error)
	DeleteRefreshTokensForUser(ctx context.Context, userID string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, userID string, now time.Time) (int64, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.Credential, error) {
	return findCredential(ctx, r.pool, `WHERE id = $1`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.Credential, error) {
	return findCredential(ctx, r.pool, `WHERE lower(email_address) = lower($1)`, strings.TrimSpace(email))
}

// WithTx runs fn inside a transaction. The transaction is committed only when fn returns
// nil; every other exit path, panics included, rolls back.
func (r *UserRepository) WithTx(ctx context.Context, fn func(CredentialTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
	}()

	if err := fn(&credentialTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type credentialTx struct {
	q querier
}

func (t *credentialTx) FindByEmail(ctx context.Context, email string) (model.Credential, error) {
	return findCredential(ctx, t.q, `WHERE lower(email_address) = lower($1)`, strings.TrimSpace(email))
}

func (t *credentialTx) Insert(ctx context.Context, c model.Credential) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO users (id, email_address, password_hash, is_admin, allow_login, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		c.ID, c.EmailAddress, c.PasswordHash, c.IsAdmin, c.AllowLogin, time.Now().UTC())
	if isUniqueViolation(err) {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (t *credentialTx) UpdateFlags(ctx context.Context, userID string, isAdmin *bool, allowLogin *bool) (model.Credential, error) {
	var c model.Credential
	err := t.q.QueryRow(ctx,
		`UPDATE users
		 SET is_admin = COALESCE($2, is_admin),
		     allow_login = COALESCE($3, allow_login),
		     updated_at = $4
		 WHERE id = $1
		 RETURNING id, email_address, password_hash, is_admin, allow_login`,
		userID, isAdmin, allowLogin, time.Now().UTC()).
		Scan(&c.ID, &c.EmailAddress, &c.PasswordHash, &c.IsAdmin, &c.AllowLogin)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Credential{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("update user flags: %w", err)
	}
	return c, nil
}

func findCredential(ctx context.Context, q querier, where string, arg any) (model.Credential, error) {
	var c model.Credential
	err := q.QueryRow(ctx,
		`SELECT id, email_address, password_hash, is_admin, allow_login
		 FROM users `+where, arg).
		Scan(&c.ID, &c.EmailAddress, &c.PasswordHash, &c.IsAdmin, &c.AllowLogin)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Credential{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("find user: %w", err)
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
