package repository

import (
	"context"
	"errors"
	"time"

	"telemt-admin/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type RegistrationRepository interface {
	RegisterOrGet(ctx context.Context, externalID int64, handle, displayName *string, now time.Time) (*domain.RegisterResult, error)
	GetByExternalID(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error)
	GetPendingByID(ctx context.Context, id int64) (*domain.RegistrationRequest, error)
	GetActive(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error)
	FindExternalIDByHandle(ctx context.Context, handle string) (int64, error)

	// Approve and Reject return (nil, nil) when the request is not pending.
	Approve(ctx context.Context, id int64, proxyUsername, secret string, now time.Time) (*domain.RegistrationRequest, error)
	Reject(ctx context.Context, id int64, now time.Time) (*domain.RegistrationRequest, error)
	Deactivate(ctx context.Context, externalID int64) (bool, error)
	SetApproved(ctx context.Context, externalID int64, handle, displayName *string, proxyUsername, secret string, now time.Time) error

	ListPending(ctx context.Context, limit int) ([]domain.RegistrationRequest, error)
	CountActive(ctx context.Context) (int64, error)
	ListActivePage(ctx context.Context, limit, offset int) ([]domain.RegistrationRequest, error)
	ListApprovedUsernames(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (*domain.AdminStats, error)
}

type InviteTokenRepository interface {
	// Create returns ErrDuplicate when the token string is already taken.
	Create(ctx context.Context, token *domain.InviteToken) error
	GetByToken(ctx context.Context, token string) (*domain.InviteToken, error)
	// Consume increments usage_count in one conditional write and returns the
	// updated row, or ErrNotFound when no usable row matched at now.
	Consume(ctx context.Context, token string, now time.Time) (*domain.InviteToken, error)
	Revoke(ctx context.Context, token string, now time.Time) (bool, error)
	ListUsable(ctx context.Context, now time.Time, limit int) ([]domain.InviteToken, error)
}
