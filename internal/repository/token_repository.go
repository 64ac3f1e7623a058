package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo persists and validates refresh tokens.  A token belongs to a
// subject (customer or restaurant ID) qualified by its role.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, subjectID uint64, role, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (subject_id, role, token_hash, expires_at) VALUES (?,?,?,?)",
		subjectID, role, tokenHash, exp.UTC())
	return err
}

// ConsumeRefresh revokes an active token and returns its subject and role.
// The revoke is one conditional UPDATE, so when two callers present the same
// token only one of them gets it.  ErrNotFound covers unknown, revoked and
// expired tokens alike.
func (r *TokenRepo) ConsumeRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, string, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP(3) WHERE token_hash=? AND revoked_at IS NULL AND expires_at > ?",
		tokenHash, now.UTC())
	if err != nil {
		return 0, "", err
	}
	if err := requireRow(res); err != nil {
		return 0, "", err
	}
	var (
		subjectID uint64
		role      string
	)
	err = r.DB.QueryRowContext(ctx,
		"SELECT subject_id, role FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&subjectID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", err
	}
	return subjectID, role, nil
}

// RevokeByHash marks a token as revoked.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP(3) WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// RevokeAllForSubject revokes every active token of the subject.
func (r *TokenRepo) RevokeAllForSubject(ctx context.Context, subjectID uint64, role string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP(3) WHERE subject_id=? AND role=? AND revoked_at IS NULL",
		subjectID, role)
	return err
}
