package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// newTestOrchestrator assembles a full orchestrator over mock storage with
// the given provider and a user repo behind both resolver and tokens.
func newTestOrchestrator(t *testing.T, provider CredentialProvider, userRepo *MockUserRepo, identityRepo *MockIdentityRepo, timeout time.Duration) *AuthOrchestrator {
	t.Helper()

	resolver, err := NewProfileResolver(userRepo, identityRepo, nil, nil)
	require.NoError(t, err)

	emailSvc, err := NewEmailCredentialService(userRepo)
	require.NoError(t, err)

	jwtUser := &entity.User{ID: 1, UID: "uid-1", Email: "jane@example.com"}
	tokenManager, _, _ := newTestTokenManager(jwtUser)

	nonceStore := new(MockNonceStore)
	nonceStore.On("Clear", mock.Anything, mock.Anything).Return(nil)

	providers := []CredentialProvider{provider, emailSvc}
	orch, err := NewAuthOrchestrator(providers, emailSvc, resolver, tokenManager, nonceStore, nil, timeout)
	require.NoError(t, err)
	return orch
}

func TestSignIn_NewUserSucceeds(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)

	created := func(u *entity.User) { u.ID = 1 }
	userRepo.On("GetByEmail", "jane@example.com").Return(nil, apperrors.ErrNotFound).Once()
	userRepo.On("GetByDisplayName", "JaneDoe").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", mock.AnythingOfType("*entity.User")).Run(func(args mock.Arguments) {
		created(args.Get(0).(*entity.User))
	}).Return(nil)
	userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, UID: "uid-1", Email: "jane@example.com"}, nil)
	identityRepo.On("GetByProviderSub", entity.ProviderApple, "apple-sub").Return(nil, apperrors.ErrNotFound)
	identityRepo.On("Create", mock.AnythingOfType("*entity.UserIdentity")).Return(nil)

	provider := &stubProvider{
		name: entity.ProviderApple,
		identity: &ExternalIdentity{
			Provider:    entity.ProviderApple,
			SubjectID:   "apple-sub",
			Email:       "jane@example.com",
			RawFullName: "Jane Doe",
		},
	}

	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	result, err := orch.SignIn(context.Background(), SignInInput{
		Provider:   entity.ProviderApple,
		Credential: Credential{AttemptID: "attempt-1", IDToken: "token"},
		DeviceID:   "device-1",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)
	assert.Equal(t, "JaneDoe", result.User.DisplayName)
	assert.Equal(t, entity.DefaultBlitzPoints, result.User.BlitzPoints)
	assert.NotEmpty(t, result.Token.AccessToken)
	assert.NotEmpty(t, result.Token.RefreshToken)
	assert.Equal(t, StateIdle, orch.State("device-1"), "machine returns to Idle after success")
}

func TestSignIn_ExistingUserNotRecreated(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)

	existing := &entity.User{ID: 1, UID: "uid-1", Email: "jane@example.com", DisplayName: "OriginalName", BlitzPoints: 4200}
	userRepo.On("GetByEmail", "jane@example.com").Return(existing, nil)
	userRepo.On("GetByID", uint(1)).Return(existing, nil)
	identityRepo.On("GetByProviderSub", entity.ProviderGoogle, "google-sub").Return(&entity.UserIdentity{ID: 2}, nil)

	provider := &stubProvider{
		name: entity.ProviderGoogle,
		identity: &ExternalIdentity{
			Provider:    entity.ProviderGoogle,
			SubjectID:   "google-sub",
			Email:       "jane@example.com",
			RawFullName: "Jane Q Doe",
		},
	}

	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	result, err := orch.SignIn(context.Background(), SignInInput{
		Provider:   entity.ProviderGoogle,
		Credential: Credential{IDToken: "token"},
		DeviceID:   "device-1",
	})
	require.NoError(t, err)
	assert.False(t, result.IsNewUser)
	assert.Equal(t, "OriginalName", result.User.DisplayName)
	assert.Equal(t, 4200, result.User.BlitzPoints)
	userRepo.AssertNotCalled(t, "Create", mock.Anything)
}

func TestSignIn_CancellationIsSilent(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)
	provider := &stubProvider{name: entity.ProviderApple, err: ErrUserCancelled}

	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	_, err := orch.SignIn(context.Background(), SignInInput{
		Provider:   entity.ProviderApple,
		Credential: Credential{AttemptID: "attempt-1", ErrorCode: "canceled"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserCancelled)
	assert.Equal(t, StateIdle, orch.State("attempt-1"), "cancellation returns straight to Idle")
}

func TestSignIn_UnknownProvider(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)
	provider := &stubProvider{name: entity.ProviderApple}

	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	_, err := orch.SignIn(context.Background(), SignInInput{Provider: "facebook", DeviceID: "device-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, StateIdle, orch.State("device-1"))
}

func TestSignIn_ReentrancyGuard(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)

	started := make(chan struct{})
	release := make(chan struct{})
	provider := &blockingProvider{name: entity.ProviderApple, started: started, release: release}

	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	errCh := make(chan error, 1)
	go func() {
		_, err := orch.SignIn(context.Background(), SignInInput{
			Provider:   entity.ProviderApple,
			Credential: Credential{AttemptID: "attempt-1"},
			DeviceID:   "device-1",
		})
		errCh <- err
	}()

	<-started

	// A double tap repeats from the same device mid-exchange and is refused,
	// even though the retry began a fresh attempt.
	_, err := orch.SignIn(context.Background(), SignInInput{
		Provider:   entity.ProviderApple,
		Credential: Credential{AttemptID: "attempt-2"},
		DeviceID:   "device-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptInProgress)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	close(release)
	<-errCh
}

func TestSignIn_ConcurrentDevicesIndependent(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)

	existing := &entity.User{ID: 1, UID: "uid-1", Email: "bob@example.com", DisplayName: "Bob"}
	userRepo.On("GetByEmail", "bob@example.com").Return(existing, nil)
	userRepo.On("GetByID", uint(1)).Return(existing, nil)
	identityRepo.On("GetByProviderSub", entity.ProviderGoogle, "google-sub").Return(&entity.UserIdentity{ID: 2}, nil)

	resolver, err := NewProfileResolver(userRepo, identityRepo, nil, nil)
	require.NoError(t, err)
	emailSvc, err := NewEmailCredentialService(userRepo)
	require.NoError(t, err)
	tokenManager, _, _ := newTestTokenManager(existing)

	nonceStore := new(MockNonceStore)
	nonceStore.On("Clear", mock.Anything, mock.Anything).Return(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	apple := &blockingProvider{name: entity.ProviderApple, started: started, release: release}
	google := &stubProvider{
		name:     entity.ProviderGoogle,
		identity: &ExternalIdentity{Provider: entity.ProviderGoogle, SubjectID: "google-sub", Email: "bob@example.com"},
	}

	orch, err := NewAuthOrchestrator([]CredentialProvider{apple, google, emailSvc}, emailSvc, resolver, tokenManager, nonceStore, nil, 0)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := orch.SignIn(context.Background(), SignInInput{
			Provider:   entity.ProviderApple,
			Credential: Credential{AttemptID: "attempt-a"},
			DeviceID:   "device-a",
		})
		errCh <- err
	}()

	<-started

	// Another device's sign-in proceeds while the first ceremony is open.
	result, err := orch.SignIn(context.Background(), SignInInput{
		Provider:   entity.ProviderGoogle,
		Credential: Credential{IDToken: "token"},
		DeviceID:   "device-b",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob", result.User.DisplayName)
	assert.NotEmpty(t, result.Token.AccessToken)

	close(release)
	<-errCh
	assert.Equal(t, StateIdle, orch.State("device-a"))
	assert.Equal(t, StateIdle, orch.State("device-b"))
}

// blockingProvider holds Authenticate open until released.
type blockingProvider struct {
	name    string
	started chan struct{}
	release chan struct{}
}

func (p *blockingProvider) Provider() string { return p.name }

func (p *blockingProvider) Authenticate(ctx context.Context, cred Credential) (*ExternalIdentity, error) {
	close(p.started)
	<-p.release
	return nil, ErrUserCancelled
}

func TestSignIn_CeremonyTimeout(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)
	provider := &timeoutProvider{name: entity.ProviderApple}

	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 20*time.Millisecond)

	_, err := orch.SignIn(context.Background(), SignInInput{
		Provider:   entity.ProviderApple,
		Credential: Credential{AttemptID: "attempt-1"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork, "a timed-out ceremony surfaces as a network failure")
	assert.Equal(t, StateIdle, orch.State("attempt-1"))
}

// timeoutProvider waits for the ceremony context to expire.
type timeoutProvider struct {
	name string
}

func (p *timeoutProvider) Provider() string { return p.name }

func (p *timeoutProvider) Authenticate(ctx context.Context, cred Credential) (*ExternalIdentity, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSignIn_DisabledAccountBlocked(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)

	disabled := &entity.User{ID: 1, UID: "uid-1", Email: "jane@example.com", Disabled: true}
	userRepo.On("GetByEmail", "jane@example.com").Return(disabled, nil)
	identityRepo.On("GetByProviderSub", mock.Anything, mock.Anything).Return(&entity.UserIdentity{ID: 1}, nil)

	provider := &stubProvider{
		name:     entity.ProviderApple,
		identity: &ExternalIdentity{Provider: entity.ProviderApple, SubjectID: "sub", Email: "jane@example.com"},
	}

	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	_, err := orch.SignIn(context.Background(), SignInInput{
		Provider:   entity.ProviderApple,
		Credential: Credential{AttemptID: "attempt-1"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountDisabled)
	assert.Equal(t, StateIdle, orch.State("attempt-1"))
}

func TestSignUp_Succeeds(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)

	userRepo.On("GetByEmail", "new@example.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("GetByDisplayName", "NewUser").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", mock.AnythingOfType("*entity.User")).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.User).ID = 1
	}).Return(nil)
	userRepo.On("GetByID", uint(1)).Return(&entity.User{ID: 1, UID: "uid-1", Email: "new@example.com"}, nil)

	provider := &stubProvider{name: entity.ProviderApple}
	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	result, err := orch.SignUp(context.Background(), SignUpInput{
		Email:       "new@example.com",
		Password:    "secret123",
		FirstName:   "New",
		LastName:    "User",
		DisplayName: "NewUser",
		DeviceID:    "device-1",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)
	assert.Equal(t, "NewUser", result.User.DisplayName)
	assert.True(t, result.User.PasswordAuthEnabled)
}

func TestSignUp_ExistingEmailConflicts(t *testing.T) {
	userRepo := new(MockUserRepo)
	identityRepo := new(MockIdentityRepo)

	userRepo.On("GetByEmail", "taken@example.com").Return(&entity.User{ID: 1}, nil)

	provider := &stubProvider{name: entity.ProviderApple}
	orch := newTestOrchestrator(t, provider, userRepo, identityRepo, 0)

	_, err := orch.SignUp(context.Background(), SignUpInput{
		Email:       "taken@example.com",
		Password:    "secret123",
		FirstName:   "A",
		LastName:    "B",
		DisplayName: "SomeName",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountConflict)
	assert.Equal(t, StateIdle, orch.State("taken@example.com"))
}
