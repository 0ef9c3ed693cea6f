package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/repository"
)

const registrationColumns = `id, external_id, handle, display_name, status, proxy_username, secret, created_at, resolved_at`

type registrationRepository struct {
	db *DB
}

func NewRegistrationRepository(db *DB) repository.RegistrationRepository {
	return &registrationRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner) (*domain.RegistrationRequest, error) {
	var (
		r            domain.RegistrationRequest
		handle, name sql.NullString
		username     sql.NullString
		secret       sql.NullString
		status       string
		createdAt    int64
		resolvedAt   sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.ExternalID, &handle, &name, &status, &username, &secret, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}
	r.Handle = stringFromNull(handle)
	r.DisplayName = stringFromNull(name)
	r.Status = domain.RequestStatus(status)
	r.ProxyUsername = stringFromNull(username)
	r.Secret = stringFromNull(secret)
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.ResolvedAt = timeFromNull(resolvedAt)
	return &r, nil
}

func (r *registrationRepository) getOne(ctx context.Context, query string, args ...any) (*domain.RegistrationRequest, error) {
	req, err := scanRegistration(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return req, err
}

func (r *registrationRepository) RegisterOrGet(ctx context.Context, externalID int64, handle, displayName *string, now time.Time) (*domain.RegisterResult, error) {
	// Two passes: a lost insert race falls through to classifying the
	// winner's row.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := r.GetByExternalID(ctx, externalID)
		switch {
		case err == nil:
			return r.classify(ctx, existing, handle, displayName)
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("load registration for %d: %w", externalID, err)
		}

		query := `INSERT INTO registration_requests (external_id, handle, display_name, status, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (external_id) DO NOTHING
			RETURNING ` + registrationColumns
		created, err := r.getOne(ctx, query, externalID, handle, displayName, domain.RequestStatusPending, now.Unix())
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert registration for %d: %w", externalID, err)
		}
		return &domain.RegisterResult{Outcome: domain.RegisterNewPending, Request: created}, nil
	}
	return nil, fmt.Errorf("register %d: row vanished after conflict", externalID)
}

func (r *registrationRepository) classify(ctx context.Context, existing *domain.RegistrationRequest, handle, displayName *string) (*domain.RegisterResult, error) {
	switch existing.Status {
	case domain.RequestStatusPending:
		query := `UPDATE registration_requests SET handle = ?, display_name = ?
			WHERE id = ? AND status = ?`
		if _, err := r.db.ExecContext(ctx, query, handle, displayName, existing.ID, domain.RequestStatusPending); err != nil {
			return nil, fmt.Errorf("refresh pending registration %d: %w", existing.ID, err)
		}
		return &domain.RegisterResult{Outcome: domain.RegisterAlreadyPending}, nil
	case domain.RequestStatusApproved:
		if existing.Secret == nil || *existing.Secret == "" {
			return &domain.RegisterResult{Outcome: domain.RegisterAlreadyPending}, nil
		}
		return &domain.RegisterResult{Outcome: domain.RegisterApproved, Secret: *existing.Secret}, nil
	case domain.RequestStatusRejected:
		return &domain.RegisterResult{Outcome: domain.RegisterRejected}, nil
	case domain.RequestStatusDeleted:
		return &domain.RegisterResult{Outcome: domain.RegisterRevoked}, nil
	}
	return nil, fmt.Errorf("registration %d has unknown status %q", existing.ID, existing.Status)
}

func (r *registrationRepository) GetByExternalID(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error) {
	query := `SELECT ` + registrationColumns + ` FROM registration_requests WHERE external_id = ?`
	return r.getOne(ctx, query, externalID)
}

func (r *registrationRepository) GetPendingByID(ctx context.Context, id int64) (*domain.RegistrationRequest, error) {
	query := `SELECT ` + registrationColumns + ` FROM registration_requests WHERE id = ? AND status = ?`
	return r.getOne(ctx, query, id, domain.RequestStatusPending)
}

func (r *registrationRepository) GetActive(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error) {
	query := `SELECT ` + registrationColumns + ` FROM registration_requests
		WHERE external_id = ? AND status = ? AND secret IS NOT NULL`
	return r.getOne(ctx, query, externalID, domain.RequestStatusApproved)
}

func (r *registrationRepository) FindExternalIDByHandle(ctx context.Context, handle string) (int64, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return 0, repository.ErrNotFound
	}
	var externalID int64
	query := `SELECT external_id FROM registration_requests WHERE LOWER(handle) = LOWER(?)
		ORDER BY created_at DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, handle).Scan(&externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, repository.ErrNotFound
	}
	return externalID, err
}

func (r *registrationRepository) Approve(ctx context.Context, id int64, proxyUsername, secret string, now time.Time) (*domain.RegistrationRequest, error) {
	query := `UPDATE registration_requests
		SET status = ?, proxy_username = ?, secret = ?, resolved_at = ?
		WHERE id = ? AND status = ?
		RETURNING ` + registrationColumns
	req, err := r.getOne(ctx, query, domain.RequestStatusApproved, proxyUsername, secret, now.Unix(), id, domain.RequestStatusPending)
	if errors.Is(err, repository.ErrNotFound) {
		logger.DatabaseResult("approve", 0, nil, "request_id", id)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("approve request %d: %w", id, err)
	}
	logger.DatabaseResult("approve", 1, nil, "request_id", id)
	return req, nil
}

func (r *registrationRepository) Reject(ctx context.Context, id int64, now time.Time) (*domain.RegistrationRequest, error) {
	query := `UPDATE registration_requests
		SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?
		RETURNING ` + registrationColumns
	req, err := r.getOne(ctx, query, domain.RequestStatusRejected, now.Unix(), id, domain.RequestStatusPending)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reject request %d: %w", id, err)
	}
	return req, nil
}

func (r *registrationRepository) Deactivate(ctx context.Context, externalID int64) (bool, error) {
	query := `UPDATE registration_requests SET status = ? WHERE external_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, domain.RequestStatusDeleted, externalID, domain.RequestStatusApproved)
	if err != nil {
		return false, fmt.Errorf("deactivate %d: %w", externalID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	logger.DatabaseResult("deactivate", n, nil, "external_id", externalID)
	return n > 0, nil
}

func (r *registrationRepository) SetApproved(ctx context.Context, externalID int64, handle, displayName *string, proxyUsername, secret string, now time.Time) error {
	query := `INSERT INTO registration_requests
			(external_id, handle, display_name, status, proxy_username, secret, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_id) DO UPDATE SET
			handle = COALESCE(excluded.handle, registration_requests.handle),
			display_name = COALESCE(excluded.display_name, registration_requests.display_name),
			status = excluded.status,
			proxy_username = excluded.proxy_username,
			secret = excluded.secret,
			resolved_at = excluded.resolved_at`
	ts := now.Unix()
	_, err := r.db.ExecContext(ctx, query, externalID, handle, displayName, domain.RequestStatusApproved, proxyUsername, secret, ts, ts)
	if err != nil {
		return fmt.Errorf("set approved %d: %w", externalID, err)
	}
	return nil
}

func (r *registrationRepository) list(ctx context.Context, query string, args ...any) ([]domain.RegistrationRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RegistrationRequest
	for rows.Next() {
		req, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *registrationRepository) ListPending(ctx context.Context, limit int) ([]domain.RegistrationRequest, error) {
	query := `SELECT ` + registrationColumns + ` FROM registration_requests
		WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT ?`
	return r.list(ctx, query, domain.RequestStatusPending, limit)
}

func (r *registrationRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM registration_requests WHERE status = ?`
	err := r.db.QueryRowContext(ctx, query, domain.RequestStatusApproved).Scan(&n)
	return n, err
}

func (r *registrationRepository) ListActivePage(ctx context.Context, limit, offset int) ([]domain.RegistrationRequest, error) {
	query := `SELECT ` + registrationColumns + ` FROM registration_requests
		WHERE status = ? ORDER BY resolved_at DESC, id DESC LIMIT ? OFFSET ?`
	return r.list(ctx, query, domain.RequestStatusApproved, limit, offset)
}

func (r *registrationRepository) ListApprovedUsernames(ctx context.Context) ([]string, error) {
	query := `SELECT proxy_username FROM registration_requests
		WHERE status = ? AND proxy_username IS NOT NULL ORDER BY proxy_username`
	rows, err := r.db.QueryContext(ctx, query, domain.RequestStatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *registrationRepository) Stats(ctx context.Context) (*domain.AdminStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM registration_requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.AdminStats{}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		stats.Total += n
		switch domain.RequestStatus(status) {
		case domain.RequestStatusPending:
			stats.Pending = n
		case domain.RequestStatusApproved:
			stats.Approved = n
		case domain.RequestStatusRejected:
			stats.Rejected = n
		case domain.RequestStatusDeleted:
			stats.Deleted = n
		}
	}
	return stats, rows.Err()
}
