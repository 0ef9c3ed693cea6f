package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"telemt-admin/internal/domain"
	"telemt-admin/internal/repository"
)

var testNow = time.Unix(1_700_000_000, 0).UTC()

func TestInviteService_CreateTokenValidation(t *testing.T) {
	repo := new(MockInviteTokenRepo)
	svc := NewInviteService(repo, TokenPolicy{MaxDays: 30}, fixedClock(testNow), nil)
	ctx := context.Background()

	_, err := svc.CreateToken(ctx, CreateTokenParams{Days: 0})
	assert.ErrorIs(t, err, ErrInvalidDays)

	_, err = svc.CreateToken(ctx, CreateTokenParams{Days: math.MaxInt64})
	assert.ErrorIs(t, err, ErrInvalidDays)

	_, err = svc.CreateToken(ctx, CreateTokenParams{Days: 31})
	assert.ErrorIs(t, err, ErrTokenTooLong)

	_, err = svc.CreateToken(ctx, CreateTokenParams{Days: 1, MaxUsage: int64Ptr(0)})
	assert.ErrorIs(t, err, ErrInvalidMaxUsage)

	_, err = svc.CreateToken(ctx, CreateTokenParams{Days: 1, AutoApprove: true})
	assert.ErrorIs(t, err, ErrAutoApproveDisabled)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInviteService_CreateTokenRetriesCollisions(t *testing.T) {
	repo := new(MockInviteTokenRepo)
	candidates := []string{"Collide001", "Collide002", "FreshToken"}
	i := 0
	gen := func() (string, error) {
		v := candidates[i]
		i++
		return v, nil
	}
	svc := NewInviteService(repo, TokenPolicy{MaxDays: 365, AllowAutoApprove: true}, fixedClock(testNow), gen)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(tok *domain.InviteToken) bool {
		return tok.Token != "FreshToken"
	})).Return(repository.ErrDuplicate).Twice()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(tok *domain.InviteToken) bool {
		return tok.Token == "FreshToken"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.InviteToken).ID = 9
	}).Return(nil).Once()

	tok, err := svc.CreateToken(context.Background(), CreateTokenParams{
		Days: 7, AutoApprove: true, MaxUsage: int64Ptr(3), CreatedBy: int64Ptr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, "FreshToken", tok.Token)
	assert.Equal(t, int64(9), tok.ID)
	assert.Equal(t, domain.TokenModeAutoApprove, tok.Mode)
	assert.Equal(t, testNow.Add(7*24*time.Hour), tok.ExpiresAt)
	repo.AssertExpectations(t)
}

func TestInviteService_CreateTokenGivesUpAfterEightCollisions(t *testing.T) {
	repo := new(MockInviteTokenRepo)
	svc := NewInviteService(repo, TokenPolicy{}, fixedClock(testNow), func() (string, error) { return "AlwaysSame", nil })

	repo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicate).Times(8)

	_, err := svc.CreateToken(context.Background(), CreateTokenParams{Days: 1})
	assert.ErrorIs(t, err, ErrTokenSpaceExhausted)
	repo.AssertNumberOfCalls(t, "Create", 8)
}

func TestInviteService_ConsumeClassifiesFailures(t *testing.T) {
	ctx := context.Background()
	base := domain.InviteToken{Token: "T", IsActive: true, ExpiresAt: testNow.Add(time.Hour)}

	tests := []struct {
		name    string
		current *domain.InviteToken
		want    error
	}{
		{"NotFound", nil, domain.ErrTokenNotFound},
		{"Revoked", func() *domain.InviteToken { t := base; t.IsActive = false; return &t }(), domain.ErrTokenRevoked},
		{"ExpiredAtBoundary", func() *domain.InviteToken { t := base; t.ExpiresAt = testNow; return &t }(), domain.ErrTokenExpired},
		{"Exhausted", func() *domain.InviteToken {
			t := base
			t.UsageCount = 3
			t.MaxUsage = int64Ptr(3)
			return &t
		}(), domain.ErrTokenUsageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockInviteTokenRepo)
			svc := NewInviteService(repo, TokenPolicy{}, fixedClock(testNow), nil)

			repo.On("Consume", ctx, "T", testNow).Return(nil, repository.ErrNotFound)
			if tt.current == nil {
				repo.On("GetByToken", ctx, "T").Return(nil, repository.ErrNotFound)
			} else {
				repo.On("GetByToken", ctx, "T").Return(tt.current, nil)
			}

			tok, err := svc.Consume(ctx, "T")
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, tok)
		})
	}
}

func TestInviteService_ConsumeSuccess(t *testing.T) {
	ctx := context.Background()
	repo := new(MockInviteTokenRepo)
	svc := NewInviteService(repo, TokenPolicy{}, fixedClock(testNow.Add(400*time.Millisecond)), nil)

	consumed := &domain.InviteToken{Token: "T", UsageCount: 1, IsActive: true}
	repo.On("Consume", ctx, "T", testNow).Return(consumed, nil)

	tok, err := svc.Consume(ctx, "T")
	require.NoError(t, err)
	assert.Same(t, consumed, tok)
	repo.AssertNotCalled(t, "GetByToken", mock.Anything, mock.Anything)
}

func TestRandomToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, err := RandomToken()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Za-z0-9]{10}$`, tok)
		seen[tok] = true
	}
	assert.Greater(t, len(seen), 45)
}
