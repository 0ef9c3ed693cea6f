package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"telemt-admin/internal/domain"
)

type MockRegistrationRepo struct {
	mock.Mock
}

func (m *MockRegistrationRepo) RegisterOrGet(ctx context.Context, externalID int64, handle, displayName *string, now time.Time) (*domain.RegisterResult, error) {
	args := m.Called(ctx, externalID, handle, displayName, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegisterResult), args.Error(1)
}
func (m *MockRegistrationRepo) GetByExternalID(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistrationRequest), args.Error(1)
}
func (m *MockRegistrationRepo) GetPendingByID(ctx context.Context, id int64) (*domain.RegistrationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistrationRequest), args.Error(1)
}
func (m *MockRegistrationRepo) GetActive(ctx context.Context, externalID int64) (*domain.RegistrationRequest, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistrationRequest), args.Error(1)
}
func (m *MockRegistrationRepo) FindExternalIDByHandle(ctx context.Context, handle string) (int64, error) {
	args := m.Called(ctx, handle)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockRegistrationRepo) Approve(ctx context.Context, id int64, proxyUsername, secret string, now time.Time) (*domain.RegistrationRequest, error) {
	args := m.Called(ctx, id, proxyUsername, secret, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistrationRequest), args.Error(1)
}
func (m *MockRegistrationRepo) Reject(ctx context.Context, id int64, now time.Time) (*domain.RegistrationRequest, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistrationRequest), args.Error(1)
}
func (m *MockRegistrationRepo) Deactivate(ctx context.Context, externalID int64) (bool, error) {
	args := m.Called(ctx, externalID)
	return args.Bool(0), args.Error(1)
}
func (m *MockRegistrationRepo) SetApproved(ctx context.Context, externalID int64, handle, displayName *string, proxyUsername, secret string, now time.Time) error {
	args := m.Called(ctx, externalID, handle, displayName, proxyUsername, secret, now)
	return args.Error(0)
}
func (m *MockRegistrationRepo) ListPending(ctx context.Context, limit int) ([]domain.RegistrationRequest, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]domain.RegistrationRequest), args.Error(1)
}
func (m *MockRegistrationRepo) CountActive(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockRegistrationRepo) ListActivePage(ctx context.Context, limit, offset int) ([]domain.RegistrationRequest, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]domain.RegistrationRequest), args.Error(1)
}
func (m *MockRegistrationRepo) ListApprovedUsernames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockRegistrationRepo) Stats(ctx context.Context) (*domain.AdminStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AdminStats), args.Error(1)
}

type MockInviteTokenRepo struct {
	mock.Mock
}

func (m *MockInviteTokenRepo) Create(ctx context.Context, token *domain.InviteToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
func (m *MockInviteTokenRepo) GetByToken(ctx context.Context, token string) (*domain.InviteToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InviteToken), args.Error(1)
}
func (m *MockInviteTokenRepo) Consume(ctx context.Context, token string, now time.Time) (*domain.InviteToken, error) {
	args := m.Called(ctx, token, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InviteToken), args.Error(1)
}
func (m *MockInviteTokenRepo) Revoke(ctx context.Context, token string, now time.Time) (bool, error) {
	args := m.Called(ctx, token, now)
	return args.Bool(0), args.Error(1)
}
func (m *MockInviteTokenRepo) ListUsable(ctx context.Context, now time.Time, limit int) ([]domain.InviteToken, error) {
	args := m.Called(ctx, now, limit)
	return args.Get(0).([]domain.InviteToken), args.Error(1)
}

// fakeCredentials is an in-memory CredentialStore that records call order.
type fakeCredentials struct {
	mu        sync.Mutex
	users     map[string]string
	params    domain.LinkParams
	paramsErr error
	upsertErr error
	upserts   int
	log       *[]string
}

func newFakeCredentials(log *[]string) *fakeCredentials {
	return &fakeCredentials{
		users:  make(map[string]string),
		params: domain.LinkParams{Host: "proxy.test", Port: 443, Secure: true},
		log:    log,
	}
}

func (f *fakeCredentials) record(s string) {
	if f.log != nil {
		*f.log = append(*f.log, s)
	}
}

func (f *fakeCredentials) Upsert(username, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("upsert")
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	f.users[username] = secret
	return nil
}

func (f *fakeCredentials) Remove(username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove")
	if _, ok := f.users[username]; !ok {
		return false, nil
	}
	delete(f.users, username)
	return true, nil
}

func (f *fakeCredentials) Usernames() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.users {
		out = append(out, name)
	}
	return out, nil
}

func (f *fakeCredentials) LinkParams() (domain.LinkParams, error) {
	return f.params, f.paramsErr
}

type fakeController struct {
	mu       sync.Mutex
	result   domain.ServiceResult
	restarts int
	log      *[]string
}

func (f *fakeController) Restart(context.Context) domain.ServiceResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	if f.log != nil {
		*f.log = append(*f.log, "restart")
	}
	return f.result
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }
