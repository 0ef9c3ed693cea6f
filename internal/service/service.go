package service

import (
	"context"
	"errors"
	"time"

	"telemt-admin/internal/domain"
)

var (
	ErrInvalidDays         = errors.New("token lifetime must be at least one day")
	ErrTokenTooLong        = errors.New("token lifetime exceeds the configured maximum")
	ErrInvalidMaxUsage     = errors.New("max uses must be at least one")
	ErrAutoApproveDisabled = errors.New("auto-approve tokens are disabled")
	ErrTokenSpaceExhausted = errors.New("could not generate a unique invite token")
	ErrOrphanedCredential  = errors.New("credential written but ledger commit failed")
)

// CredentialStore is the proxy-side list of users and secrets.
type CredentialStore interface {
	Upsert(username, secret string) error
	Remove(username string) (bool, error)
	Usernames() ([]string, error)
	LinkParams() (domain.LinkParams, error)
}

type ServiceController interface {
	Restart(ctx context.Context) domain.ServiceResult
}

// Identity is what the chat transport knows about a sender.
type Identity struct {
	ExternalID  int64
	Handle      *string
	DisplayName *string
}

type CreateTokenParams struct {
	Days        int64
	AutoApprove bool
	MaxUsage    *int64
	CreatedBy   *int64
}

type TokenPolicy struct {
	MaxDays          int64
	AllowAutoApprove bool
}

type UsersPage struct {
	Users      []domain.RegistrationRequest
	Total      int64
	Page       int
	TotalPages int
}

type RegistrationService interface {
	Register(ctx context.Context, id Identity) (*domain.RegisterResult, error)
	// Lookup returns nil when the identity has never been seen.
	Lookup(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error)
	// ActiveUser returns nil unless the identity is approved with a secret.
	ActiveUser(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error)
	ResolveHandle(ctx context.Context, handle string) (int64, bool, error)
	Reject(ctx context.Context, requestID int64) (*domain.RegistrationRequest, error)
	ListPending(ctx context.Context, limit int) ([]domain.RegistrationRequest, error)
	ActiveUsersPage(ctx context.Context, page, pageSize int) (*UsersPage, error)
	Stats(ctx context.Context) (*domain.AdminStats, error)
	ApprovedUsernames(ctx context.Context) ([]string, error)
}

type InviteService interface {
	CreateToken(ctx context.Context, p CreateTokenParams) (*domain.InviteToken, error)
	Consume(ctx context.Context, token string) (*domain.InviteToken, error)
	Revoke(ctx context.Context, token string) (bool, error)
	ListActive(ctx context.Context, limit int) ([]domain.InviteToken, error)
}

type ProvisioningService interface {
	// ApproveRequest returns nil when the request is no longer pending.
	ApproveRequest(ctx context.Context, requestID int64) (*GrantResult, error)
	GrantDirect(ctx context.Context, id Identity) (*GrantResult, error)
	Revoke(ctx context.Context, externalID int64) (*RevokeResult, error)
	LinkForSecret(secret string) (string, error)
}

type AccessService interface {
	Redeem(ctx context.Context, id Identity, token string) (*RedeemResult, error)
}

type Clock func() time.Time
