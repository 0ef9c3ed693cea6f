package service

import (
	"context"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
)

// RedeemResult is the outcome of a successful token redemption. Exactly one
// of Register (manual token) or Grant (auto-approve token) is set.
type RedeemResult struct {
	Token    *domain.InviteToken
	Register *domain.RegisterResult
	Grant    *GrantResult
	// Link and LinkErr are set for a manual token whose holder was
	// already approved.
	Link    string
	LinkErr error
}

type accessService struct {
	invites      InviteService
	registration RegistrationService
	provisioning ProvisioningService
}

func NewAccessService(invites InviteService, registration RegistrationService, provisioning ProvisioningService) AccessService {
	return &accessService{invites: invites, registration: registration, provisioning: provisioning}
}

// Redeem consumes one use of token for id. Token failures come back as the
// domain token errors with nothing else mutated.
func (s *accessService) Redeem(ctx context.Context, id Identity, token string) (*RedeemResult, error) {
	consumed, err := s.invites.Consume(ctx, token)
	if err != nil {
		return nil, err
	}
	logger.Info("Invite token redeemed",
		"external_id", id.ExternalID, "token_id", consumed.ID, "mode", consumed.Mode,
		"usage_count", consumed.UsageCount, "max_usage", consumed.MaxUsage)

	result := &RedeemResult{Token: consumed}
	if consumed.AutoApprove() {
		grant, err := s.provisioning.GrantDirect(ctx, id)
		if err != nil {
			return nil, err
		}
		result.Grant = grant
		return result, nil
	}

	reg, err := s.registration.Register(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Register = reg
	if reg.Outcome == domain.RegisterApproved {
		result.Link, result.LinkErr = s.provisioning.LinkForSecret(reg.Secret)
	}
	return result, nil
}
