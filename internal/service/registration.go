package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/repository"
)

type registrationService struct {
	regRepo repository.RegistrationRepository
	now     Clock
}

func NewRegistrationService(regRepo repository.RegistrationRepository, now Clock) RegistrationService {
	if now == nil {
		now = time.Now
	}
	return &registrationService{regRepo: regRepo, now: now}
}

func (s *registrationService) Register(ctx context.Context, id Identity) (*domain.RegisterResult, error) {
	res, err := s.regRepo.RegisterOrGet(ctx, id.ExternalID, id.Handle, id.DisplayName, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to register %d: %w", id.ExternalID, err)
	}
	return res, nil
}

func (s *registrationService) Lookup(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error) {
	return nilIfNotFound(s.regRepo.GetByExternalID(ctx, externalID))
}

func (s *registrationService) ActiveUser(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error) {
	return nilIfNotFound(s.regRepo.GetActive(ctx, externalID))
}

func (s *registrationService) ResolveHandle(ctx context.Context, handle string) (int64, bool, error) {
	id, err := s.regRepo.FindExternalIDByHandle(ctx, handle)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *registrationService) Reject(ctx context.Context, requestID int64) (*domain.RegistrationRequest, error) {
	return s.regRepo.Reject(ctx, requestID, s.now())
}

func (s *registrationService) ListPending(ctx context.Context, limit int) ([]domain.RegistrationRequest, error) {
	return s.regRepo.ListPending(ctx, limit)
}

// ActiveUsersPage clamps page into [1, TotalPages]. An empty ledger yields
// Total 0 and no users.
func (s *registrationService) ActiveUsersPage(ctx context.Context, page, pageSize int) (*UsersPage, error) {
	if pageSize < 1 {
		pageSize = 1
	}
	total, err := s.regRepo.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}
	if total == 0 {
		return &UsersPage{Page: 1, TotalPages: 1}, nil
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	page = max(1, min(page, totalPages))

	users, err := s.regRepo.ListActivePage(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return &UsersPage{Users: users, Total: total, Page: page, TotalPages: totalPages}, nil
}

func (s *registrationService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	return s.regRepo.Stats(ctx)
}

func (s *registrationService) ApprovedUsernames(ctx context.Context) ([]string, error) {
	return s.regRepo.ListApprovedUsernames(ctx)
}

func nilIfNotFound(req *domain.RegistrationRequest, err error) (*domain.RegistrationRequest, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return req, err
}
