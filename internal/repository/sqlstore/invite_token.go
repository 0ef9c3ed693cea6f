package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/repository"
)

const inviteTokenColumns = `id, token, created_at, expires_at, auto_approve, created_by, usage_count, max_usage, is_active, revoked_at`

type inviteTokenRepository struct {
	db *DB
}

func NewInviteTokenRepository(db *DB) repository.InviteTokenRepository {
	return &inviteTokenRepository{db: db}
}

func scanInviteToken(row rowScanner) (*domain.InviteToken, error) {
	var (
		t         domain.InviteToken
		createdAt int64
		expiresAt int64
		auto      bool
		createdBy sql.NullInt64
		maxUsage  sql.NullInt64
		revokedAt sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Token, &createdAt, &expiresAt, &auto, &createdBy, &t.UsageCount, &maxUsage, &t.IsActive, &revokedAt)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	t.Mode = domain.TokenModeManual
	if auto {
		t.Mode = domain.TokenModeAutoApprove
	}
	t.CreatedBy = int64FromNull(createdBy)
	t.MaxUsage = int64FromNull(maxUsage)
	t.RevokedAt = timeFromNull(revokedAt)
	return &t, nil
}

func (r *inviteTokenRepository) getOne(ctx context.Context, query string, args ...any) (*domain.InviteToken, error) {
	t, err := scanInviteToken(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return t, err
}

func (r *inviteTokenRepository) Create(ctx context.Context, t *domain.InviteToken) error {
	query := `INSERT INTO invite_tokens
			(token, created_at, expires_at, auto_approve, created_by, usage_count, max_usage, is_active)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		RETURNING id`
	var createdBy, maxUsage any
	if t.CreatedBy != nil {
		createdBy = *t.CreatedBy
	}
	if t.MaxUsage != nil {
		maxUsage = *t.MaxUsage
	}
	err := r.db.QueryRowContext(ctx, query,
		t.Token, t.CreatedAt.Unix(), t.ExpiresAt.Unix(), t.AutoApprove(), createdBy, maxUsage, true,
	).Scan(&t.ID)
	if err != nil {
		if r.db.Dialect.IsUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert invite token: %w", err)
	}
	t.UsageCount = 0
	t.IsActive = true
	return nil
}

func (r *inviteTokenRepository) GetByToken(ctx context.Context, token string) (*domain.InviteToken, error) {
	query := `SELECT ` + inviteTokenColumns + ` FROM invite_tokens WHERE token = ?`
	return r.getOne(ctx, query, token)
}

// Consume increments usage in the same statement that checks usability, so
// concurrent redemptions can never exceed max_usage.
func (r *inviteTokenRepository) Consume(ctx context.Context, token string, now time.Time) (*domain.InviteToken, error) {
	query := `UPDATE invite_tokens
		SET usage_count = usage_count + 1
		WHERE token = ?
		  AND is_active = ?
		  AND expires_at > ?
		  AND (max_usage IS NULL OR usage_count < max_usage)
		RETURNING ` + inviteTokenColumns
	t, err := r.getOne(ctx, query, token, true, now.Unix())
	if errors.Is(err, repository.ErrNotFound) {
		logger.DatabaseResult("consume_token", 0, nil)
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume invite token: %w", err)
	}
	logger.DatabaseResult("consume_token", 1, nil, "usage_count", t.UsageCount)
	return t, nil
}

func (r *inviteTokenRepository) Revoke(ctx context.Context, token string, now time.Time) (bool, error) {
	query := `UPDATE invite_tokens SET is_active = ?, revoked_at = ? WHERE token = ? AND is_active = ?`
	res, err := r.db.ExecContext(ctx, query, false, now.Unix(), token, true)
	if err != nil {
		return false, fmt.Errorf("revoke invite token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *inviteTokenRepository) ListUsable(ctx context.Context, now time.Time, limit int) ([]domain.InviteToken, error) {
	query := `SELECT ` + inviteTokenColumns + ` FROM invite_tokens
		WHERE is_active = ?
		  AND expires_at > ?
		  AND (max_usage IS NULL OR usage_count < max_usage)
		ORDER BY expires_at ASC, id ASC
		LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, true, now.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InviteToken
	for rows.Next() {
		t, err := scanInviteToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
