package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/repository"
)

const (
	tokenLength        = 10
	tokenAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	tokenCreateRetries = 8
	secondsPerDay      = 24 * 60 * 60
)

// TokenGenerator returns a fresh candidate invite token.
type TokenGenerator func() (string, error)

// RandomToken draws tokenLength characters uniformly from tokenAlphabet.
func RandomToken() (string, error) {
	b := make([]byte, tokenLength)
	limit := big.NewInt(int64(len(tokenAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}

type inviteService struct {
	tokenRepo repository.InviteTokenRepository
	policy    TokenPolicy
	now       Clock
	generate  TokenGenerator
}

func NewInviteService(tokenRepo repository.InviteTokenRepository, policy TokenPolicy, now Clock, generate TokenGenerator) InviteService {
	if now == nil {
		now = time.Now
	}
	if generate == nil {
		generate = RandomToken
	}
	return &inviteService{tokenRepo: tokenRepo, policy: policy, now: now, generate: generate}
}

// unixNow drops sub-second precision so the Go-side usability check and the
// SQL predicate agree on the expiry boundary.
func (s *inviteService) unixNow() time.Time {
	return time.Unix(s.now().Unix(), 0).UTC()
}

func (s *inviteService) CreateToken(ctx context.Context, p CreateTokenParams) (*domain.InviteToken, error) {
	if p.Days < 1 || p.Days > math.MaxInt64/secondsPerDay {
		return nil, ErrInvalidDays
	}
	if s.policy.MaxDays > 0 && p.Days > s.policy.MaxDays {
		return nil, ErrTokenTooLong
	}
	if p.MaxUsage != nil && *p.MaxUsage < 1 {
		return nil, ErrInvalidMaxUsage
	}
	if p.AutoApprove && !s.policy.AllowAutoApprove {
		return nil, ErrAutoApproveDisabled
	}

	now := s.unixNow()
	ttl := p.Days * secondsPerDay
	if now.Unix() > math.MaxInt64-ttl {
		return nil, ErrInvalidDays
	}

	mode := domain.TokenModeManual
	if p.AutoApprove {
		mode = domain.TokenModeAutoApprove
	}

	for attempt := 1; attempt <= tokenCreateRetries; attempt++ {
		value, err := s.generate()
		if err != nil {
			return nil, err
		}
		token := &domain.InviteToken{
			Token:     value,
			CreatedAt: now,
			ExpiresAt: time.Unix(now.Unix()+ttl, 0).UTC(),
			Mode:      mode,
			CreatedBy: p.CreatedBy,
			MaxUsage:  p.MaxUsage,
		}
		err = s.tokenRepo.Create(ctx, token)
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Warn("Invite token collision, retrying", "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create invite token: %w", err)
		}
		logger.Info("Invite token created",
			"token_id", token.ID, "mode", token.Mode, "days", p.Days, "max_usage", p.MaxUsage, "created_by", p.CreatedBy)
		return token, nil
	}
	return nil, ErrTokenSpaceExhausted
}

// Consume grants one use of token or returns one of the domain token errors.
// The read that classifies a failure never grants.
func (s *inviteService) Consume(ctx context.Context, token string) (*domain.InviteToken, error) {
	now := s.unixNow()
	consumed, err := s.tokenRepo.Consume(ctx, token, now)
	if err == nil {
		return consumed, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	current, err := s.tokenRepo.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to inspect invite token: %w", err)
	}
	if reason := current.Unusable(now); reason != nil {
		return nil, reason
	}
	return nil, domain.ErrTokenNotFound
}

func (s *inviteService) Revoke(ctx context.Context, token string) (bool, error) {
	return s.tokenRepo.Revoke(ctx, token, s.unixNow())
}

func (s *inviteService) ListActive(ctx context.Context, limit int) ([]domain.InviteToken, error) {
	return s.tokenRepo.ListUsable(ctx, s.unixNow(), limit)
}
