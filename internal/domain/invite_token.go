package domain

import (
	"errors"
	"time"
)

type TokenMode string

const (
	TokenModeManual      TokenMode = "manual"
	TokenModeAutoApprove TokenMode = "auto"
)

var (
	ErrTokenNotFound   = errors.New("invite token not found")
	ErrTokenRevoked    = errors.New("invite token revoked")
	ErrTokenExpired    = errors.New("invite token expired")
	ErrTokenUsageLimit = errors.New("invite token usage limit reached")
)

// InviteToken is a usage-bounded capability to self-provision. Expiry and
// exhaustion are never stored; only revocation flips IsActive.
type InviteToken struct {
	ID         int64      `json:"id"`
	Token      string     `json:"token"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Mode       TokenMode  `json:"mode"`
	CreatedBy  *int64     `json:"created_by,omitempty"`
	UsageCount int64      `json:"usage_count"`
	MaxUsage   *int64     `json:"max_usage,omitempty"`
	IsActive   bool       `json:"is_active"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func (t *InviteToken) AutoApprove() bool {
	return t.Mode == TokenModeAutoApprove
}

// Unusable reports why the token cannot be consumed at now, or nil if it can.
// Reasons are checked in the order revoked, expired, exhausted.
func (t *InviteToken) Unusable(now time.Time) error {
	if !t.IsActive {
		return ErrTokenRevoked
	}
	if !now.Before(t.ExpiresAt) {
		return ErrTokenExpired
	}
	if t.MaxUsage != nil && t.UsageCount >= *t.MaxUsage {
		return ErrTokenUsageLimit
	}
	return nil
}

func (t *InviteToken) Usable(now time.Time) bool {
	return t.Unusable(now) == nil
}
