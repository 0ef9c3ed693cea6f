package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/repository"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DB{DB: db, Dialect: NewPostgresDialect()}, mock
}

var registrationCols = []string{"id", "external_id", "handle", "display_name", "status", "proxy_username", "secret", "created_at", "resolved_at"}
var tokenCols = []string{"id", "token", "created_at", "expires_at", "auto_approve", "created_by", "usage_count", "max_usage", "is_active", "revoked_at"}

func TestRewritePlaceholders(t *testing.T) {
	got := rewritePlaceholdersToNumbered(`SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?`)
	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2`, got)
	assert.Equal(t, "SELECT 1", NewSQLiteDialect().RewriteQuery("SELECT 1"))
}

func TestPostgresDialect_IsUniqueViolation(t *testing.T) {
	d := NewPostgresDialect()
	assert.True(t, d.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, d.IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, d.IsUniqueViolation(assert.AnError))
}

func TestRegistrationRepository_Approve(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	t.Run("Pending", func(t *testing.T) {
		rows := sqlmock.NewRows(registrationCols).
			AddRow(7, 42, "alice", "Alice", "approved", "tg_42", "abcd", now.Unix()-60, now.Unix())
		mock.ExpectQuery(`UPDATE registration_requests\s+SET status = \$1`).
			WithArgs("approved", "tg_42", "abcd", now.Unix(), int64(7), "pending").
			WillReturnRows(rows)

		req, err := repo.Approve(ctx, 7, "tg_42", "abcd", now)
		require.NoError(t, err)
		require.NotNil(t, req)
		assert.Equal(t, int64(42), req.ExternalID)
		assert.Equal(t, domain.RequestStatusApproved, req.Status)
		require.NotNil(t, req.ResolvedAt)
		assert.Equal(t, now.Unix(), req.ResolvedAt.Unix())
	})

	t.Run("AlreadyHandled", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE registration_requests`).
			WithArgs("approved", "tg_42", "abcd", now.Unix(), int64(7), "pending").
			WillReturnRows(sqlmock.NewRows(registrationCols))

		req, err := repo.Approve(ctx, 7, "tg_42", "abcd", now)
		assert.NoError(t, err)
		assert.Nil(t, req)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepository_RegisterOrGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRegistrationRepository(db)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	handle := "bob"

	t.Run("NewPending", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM registration_requests WHERE external_id = \$1`).
			WithArgs(int64(5)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO registration_requests`).
			WithArgs(int64(5), &handle, nil, "pending", now.Unix()).
			WillReturnRows(sqlmock.NewRows(registrationCols).
				AddRow(1, 5, "bob", nil, "pending", nil, nil, now.Unix(), nil))

		res, err := repo.RegisterOrGet(ctx, 5, &handle, nil, now)
		require.NoError(t, err)
		assert.Equal(t, domain.RegisterNewPending, res.Outcome)
		require.NotNil(t, res.Request)
		assert.Equal(t, int64(1), res.Request.ID)
	})

	t.Run("LostInsertRace", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM registration_requests WHERE external_id`).
			WithArgs(int64(6)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO registration_requests`).
			WillReturnRows(sqlmock.NewRows(registrationCols))
		mock.ExpectQuery(`SELECT (.+) FROM registration_requests WHERE external_id`).
			WithArgs(int64(6)).
			WillReturnRows(sqlmock.NewRows(registrationCols).
				AddRow(2, 6, nil, nil, "pending", nil, nil, now.Unix(), nil))
		mock.ExpectExec(`UPDATE registration_requests SET handle`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		res, err := repo.RegisterOrGet(ctx, 6, nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, domain.RegisterAlreadyPending, res.Outcome)
	})

	t.Run("ApprovedWithoutSecret", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM registration_requests WHERE external_id`).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows(registrationCols).
				AddRow(3, 8, nil, nil, "approved", "tg_8", nil, now.Unix(), now.Unix()))

		res, err := repo.RegisterOrGet(ctx, 8, nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, domain.RegisterAlreadyPending, res.Outcome)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteTokenRepository_Consume(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInviteTokenRepository(db)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	t.Run("Usable", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE invite_tokens\s+SET usage_count = usage_count \+ 1`).
			WithArgs("AbCdEf1234", true, now.Unix()).
			WillReturnRows(sqlmock.NewRows(tokenCols).
				AddRow(1, "AbCdEf1234", now.Unix()-10, now.Unix()+86400, true, 99, 1, 3, true, nil))

		tok, err := repo.Consume(ctx, "AbCdEf1234", now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), tok.UsageCount)
		assert.True(t, tok.AutoApprove())
		require.NotNil(t, tok.MaxUsage)
		assert.Equal(t, int64(3), *tok.MaxUsage)
	})

	t.Run("NoUsableRow", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE invite_tokens`).
			WithArgs("gone", true, now.Unix()).
			WillReturnRows(sqlmock.NewRows(tokenCols))

		tok, err := repo.Consume(ctx, "gone", now)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, tok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteTokenRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewInviteTokenRepository(db)
	now := time.Unix(1_700_000_000, 0)

	mock.ExpectQuery(`INSERT INTO invite_tokens`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &domain.InviteToken{
		Token: "dup", CreatedAt: now, ExpiresAt: now.Add(time.Hour), Mode: domain.TokenModeManual,
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
