package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/repository"
	"telemt-admin/internal/telemt"
)

// SecretGenerator returns a fresh 32-hex-character proxy secret.
type SecretGenerator func() (string, error)

// GrantResult describes a committed grant. A failed restart leaves the
// running proxy stale; a failed link build leaves Link empty.
type GrantResult struct {
	Request       *domain.RegistrationRequest
	ExternalID    int64
	ProxyUsername string
	Secret        string
	Link          string
	LinkErr       error
	Restart       domain.ServiceResult
}

func (r *GrantResult) Stale() bool {
	return !r.Restart.Success
}

type RevokeResult struct {
	ProxyUsername     string
	CredentialRemoved bool
	LedgerDeactivated bool
	Restarted         bool
	Restart           domain.ServiceResult
}

// Found reports whether either store knew the identity.
func (r *RevokeResult) Found() bool {
	return r.CredentialRemoved || r.LedgerDeactivated
}

func (r *RevokeResult) Stale() bool {
	return r.Restarted && !r.Restart.Success
}

type provisioningService struct {
	regRepo    repository.RegistrationRepository
	creds      CredentialStore
	controller ServiceController
	now        Clock
	secret     SecretGenerator
	locks      *keyedLock
}

func NewProvisioningService(
	regRepo repository.RegistrationRepository,
	creds CredentialStore,
	controller ServiceController,
	now Clock,
	secret SecretGenerator,
) ProvisioningService {
	if now == nil {
		now = time.Now
	}
	if secret == nil {
		secret = telemt.GenerateSecret
	}
	return &provisioningService{
		regRepo:    regRepo,
		creds:      creds,
		controller: controller,
		now:        now,
		secret:     secret,
		locks:      newKeyedLock(),
	}
}

func (s *provisioningService) ApproveRequest(ctx context.Context, requestID int64) (*GrantResult, error) {
	req, err := s.regRepo.GetPendingByID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %d: %w", requestID, err)
	}

	unlock := s.locks.Lock(req.ExternalID)
	defer unlock()

	// Another approval may have finished while we waited for the lock.
	req, err = s.regRepo.GetPendingByID(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reload request %d: %w", requestID, err)
	}

	username := domain.ProxyUsername(req.ExternalID)
	secret, err := s.secret()
	if err != nil {
		return nil, err
	}
	if err := s.creds.Upsert(username, secret); err != nil {
		return nil, fmt.Errorf("failed to write credential for %s: %w", username, err)
	}

	approved, err := s.regRepo.Approve(ctx, requestID, username, secret, s.now())
	if err != nil {
		logger.Error("Orphaned credential: ledger approve failed after credential write",
			"request_id", requestID, "username", username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOrphanedCredential, err)
	}
	if approved == nil {
		// Only another process can resolve the request while we hold the
		// identity lock. If it approved, our Upsert replaced its live secret.
		logger.Error("Credential conflict: request resolved by another process during approval",
			"request_id", requestID, "username", username,
			"impact", "if the other process approved, its live secret in the proxy config was replaced",
			"action", "revoke and re-grant the user")
		return nil, nil
	}

	logger.Info("Registration request approved", "request_id", requestID, "external_id", req.ExternalID, "username", username)
	result := &GrantResult{
		Request:       approved,
		ExternalID:    approved.ExternalID,
		ProxyUsername: username,
		Secret:        secret,
	}
	s.finish(ctx, result, "approve")
	return result, nil
}

func (s *provisioningService) GrantDirect(ctx context.Context, id Identity) (*GrantResult, error) {
	unlock := s.locks.Lock(id.ExternalID)
	defer unlock()

	username := domain.ProxyUsername(id.ExternalID)
	secret, err := s.secret()
	if err != nil {
		return nil, err
	}
	if err := s.creds.Upsert(username, secret); err != nil {
		return nil, fmt.Errorf("failed to write credential for %s: %w", username, err)
	}

	if err := s.regRepo.SetApproved(ctx, id.ExternalID, id.Handle, id.DisplayName, username, secret, s.now()); err != nil {
		logger.Error("Orphaned credential: ledger upsert failed after credential write",
			"external_id", id.ExternalID, "username", username, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOrphanedCredential, err)
	}

	logger.Info("Access granted directly", "external_id", id.ExternalID, "username", username)
	result := &GrantResult{
		ExternalID:    id.ExternalID,
		ProxyUsername: username,
		Secret:        secret,
	}
	s.finish(ctx, result, "grant")
	return result, nil
}

// finish restarts the proxy and builds the link. Neither failure undoes the
// committed grant.
func (s *provisioningService) finish(ctx context.Context, result *GrantResult, reason string) {
	result.Restart = s.controller.Restart(ctx)
	if !result.Restart.Success {
		logger.Warn("Proxy restart failed, running service is stale",
			"reason", reason, "username", result.ProxyUsername, "stderr", result.Restart.Stderr)
	}

	result.Link, result.LinkErr = s.LinkForSecret(result.Secret)
	if result.LinkErr != nil {
		logger.Error("Failed to build connection link", "username", result.ProxyUsername, "error", result.LinkErr)
	}
}

func (s *provisioningService) Revoke(ctx context.Context, externalID int64) (*RevokeResult, error) {
	unlock := s.locks.Lock(externalID)
	defer unlock()

	result := &RevokeResult{ProxyUsername: domain.ProxyUsername(externalID)}

	removed, err := s.creds.Remove(result.ProxyUsername)
	if err != nil {
		return nil, fmt.Errorf("failed to remove credential %s: %w", result.ProxyUsername, err)
	}
	result.CredentialRemoved = removed

	deactivated, err := s.regRepo.Deactivate(ctx, externalID)
	if err != nil {
		if removed {
			logger.Error("Credential removed but ledger deactivate failed",
				"external_id", externalID, "username", result.ProxyUsername, "error", err)
			s.restartAfterRevoke(ctx, result)
		}
		return nil, fmt.Errorf("failed to deactivate %d: %w", externalID, err)
	}
	result.LedgerDeactivated = deactivated

	if removed {
		s.restartAfterRevoke(ctx, result)
	}
	logger.Info("Access revoked", "external_id", externalID,
		"credential_removed", result.CredentialRemoved, "ledger_deactivated", result.LedgerDeactivated)
	return result, nil
}

func (s *provisioningService) restartAfterRevoke(ctx context.Context, result *RevokeResult) {
	result.Restarted = true
	result.Restart = s.controller.Restart(ctx)
	if !result.Restart.Success {
		logger.Warn("Proxy restart failed after revoke, running service is stale",
			"username", result.ProxyUsername, "stderr", result.Restart.Stderr)
	}
}

func (s *provisioningService) LinkForSecret(secret string) (string, error) {
	params, err := s.creds.LinkParams()
	if err != nil {
		return "", err
	}
	return telemt.BuildLink(params, secret)
}
