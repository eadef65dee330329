package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/sling-api/internal/domain/entity"
	"github.com/yourusername/sling-api/pkg/auth"
	"github.com/yourusername/sling-api/pkg/auth/manager"
)

// ============================================================================
// Shared mocks for the service package tests
// ============================================================================

// MockUserRepo implements repository.UserRepository
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) GetByUID(uid string) (*entity.User, error) {
	args := m.Called(uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) GetByDisplayName(displayName string) (*entity.User, error) {
	args := m.Called(displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepo) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepo) UpdateProfile(userID uint, updates map[string]interface{}) error {
	args := m.Called(userID, updates)
	return args.Error(0)
}

func (m *MockUserRepo) UpdatePassword(userID uint, newPassword string) error {
	args := m.Called(userID, newPassword)
	return args.Error(0)
}

func (m *MockUserRepo) List(limit, offset int) ([]entity.User, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

// MockIdentityRepo implements repository.UserIdentityRepository
type MockIdentityRepo struct {
	mock.Mock
}

func (m *MockIdentityRepo) Create(identity *entity.UserIdentity) error {
	args := m.Called(identity)
	return args.Error(0)
}

func (m *MockIdentityRepo) GetByProviderSub(provider, providerSub string) (*entity.UserIdentity, error) {
	args := m.Called(provider, providerSub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.UserIdentity), args.Error(1)
}

func (m *MockIdentityRepo) GetByUserAndProvider(userID uint, provider string) (*entity.UserIdentity, error) {
	args := m.Called(userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.UserIdentity), args.Error(1)
}

func (m *MockIdentityRepo) DeleteByUserID(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

// MockRefreshTokenRepo implements repository.RefreshTokenRepository
type MockRefreshTokenRepo struct {
	mock.Mock
}

func (m *MockRefreshTokenRepo) CreateToken(token *entity.RefreshToken) (uint, error) {
	args := m.Called(token)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockRefreshTokenRepo) GetTokenByValue(tokenHash string) (*entity.RefreshToken, error) {
	args := m.Called(tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepo) GetTokenByID(id uint) (*entity.RefreshToken, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepo) MarkTokenAsExpired(tokenHash string) error {
	args := m.Called(tokenHash)
	return args.Error(0)
}

func (m *MockRefreshTokenRepo) MarkTokenAsExpiredByID(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockRefreshTokenRepo) MarkAllAsExpiredForUser(userID uint) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockRefreshTokenRepo) CleanupExpiredTokens() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefreshTokenRepo) GetActiveTokensForUser(userID uint) ([]*entity.RefreshToken, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenRepo) CountTokensForUser(userID uint) (int, error) {
	args := m.Called(userID)
	return args.Int(0), args.Error(1)
}

func (m *MockRefreshTokenRepo) MarkOldestAsExpiredForUser(userID uint, limit int) error {
	args := m.Called(userID, limit)
	return args.Error(0)
}

// MockNonceStore implements NonceStore
type MockNonceStore struct {
	mock.Mock
}

func (m *MockNonceStore) Put(ctx context.Context, attemptID, rawNonce string) error {
	args := m.Called(ctx, attemptID, rawNonce)
	return args.Error(0)
}

func (m *MockNonceStore) Consume(ctx context.Context, attemptID string) (string, error) {
	args := m.Called(ctx, attemptID)
	return args.String(0), args.Error(1)
}

func (m *MockNonceStore) Clear(ctx context.Context, attemptID string) error {
	args := m.Called(ctx, attemptID)
	return args.Error(0)
}

// stubProvider returns a canned identity or error from Authenticate.
type stubProvider struct {
	name     string
	identity *ExternalIdentity
	err      error
}

func (p *stubProvider) Provider() string { return p.name }

func (p *stubProvider) Authenticate(ctx context.Context, cred Credential) (*ExternalIdentity, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.identity, nil
}

// newTestTokenManager builds a real TokenManager over mock repositories.
// The returned mocks are preconfigured for one successful pair issuance
// for the given user.
func newTestTokenManager(user *entity.User) (*manager.TokenManager, *MockRefreshTokenRepo, *MockUserRepo) {
	jwtService, err := auth.NewJWTService("test-secret-at-least-32-characters!!", 1)
	if err != nil {
		panic(err)
	}

	refreshRepo := new(MockRefreshTokenRepo)
	userRepo := new(MockUserRepo)

	userRepo.On("GetByID", user.ID).Return(user, nil)
	refreshRepo.On("CountTokensForUser", user.ID).Return(0, nil)
	refreshRepo.On("CreateToken", mock.AnythingOfType("*entity.RefreshToken")).Return(uint(1), nil)

	tm, err := manager.NewTokenManager(jwtService, refreshRepo, userRepo)
	if err != nil {
		panic(err)
	}
	tm.SetAccessTokenExpiry(30 * time.Minute)
	return tm, refreshRepo, userRepo
}
