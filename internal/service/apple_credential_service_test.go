package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/sling-api/internal/config"
	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

func newTestAppleService(t *testing.T, nonceStore *MockNonceStore) *AppleCredentialService {
	t.Helper()
	svc, err := NewAppleCredentialService(nonceStore, config.AppleConfig{ClientIDs: []string{"app.sling.ios"}}, nil)
	require.NoError(t, err)
	return svc
}

func TestNewAppleCredentialService_RequiresClientID(t *testing.T) {
	_, err := NewAppleCredentialService(new(MockNonceStore), config.AppleConfig{}, nil)
	require.Error(t, err)
}

func TestAppleBeginAttempt(t *testing.T) {
	nonceStore := new(MockNonceStore)
	svc := newTestAppleService(t, nonceStore)

	var storedRaw string
	nonceStore.On("Put", mock.Anything, "attempt-1", mock.AnythingOfType("string")).Run(func(args mock.Arguments) {
		storedRaw = args.String(2)
	}).Return(nil)

	hashed, err := svc.BeginAttempt(context.Background(), "attempt-1")
	require.NoError(t, err)
	assert.Len(t, storedRaw, DefaultNonceLength)
	assert.Equal(t, HashNonce(storedRaw), hashed, "client receives the hash of the stored raw nonce")
}

func TestAppleBeginAttempt_EmptyAttemptID(t *testing.T) {
	svc := newTestAppleService(t, new(MockNonceStore))
	_, err := svc.BeginAttempt(context.Background(), "  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAppleAuthenticate_ErrorCodeMapping(t *testing.T) {
	tests := []struct {
		code    string
		wantErr error
	}{
		{"canceled", ErrUserCancelled},
		{"failed", ErrInvalidCredential},
		{"invalidResponse", ErrInvalidCredential},
		{"notHandled", ErrInvalidCredential},
		{"unknown", ErrInvalidCredential},
		{"notInteractive", ErrDeviceUnsupported},
		{"1000", ErrProviderConfiguration},
		{"1001", ErrProviderConfiguration},
		{"something-else", ErrInvalidCredential},
		// Session-exchange codes fall through to the shared table.
		{"user-disabled", ErrAccountDisabled},
		{"account-exists-with-different-credential", ErrAccountConflict},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			nonceStore := new(MockNonceStore)
			nonceStore.On("Clear", mock.Anything, "attempt-1").Return(nil)
			svc := newTestAppleService(t, nonceStore)

			_, err := svc.Authenticate(context.Background(), Credential{AttemptID: "attempt-1", ErrorCode: tt.code})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			nonceStore.AssertCalled(t, "Clear", mock.Anything, "attempt-1")
		})
	}
}

func TestAppleAuthenticate_NoOutstandingNonce(t *testing.T) {
	nonceStore := new(MockNonceStore)
	nonceStore.On("Consume", mock.Anything, "attempt-1").Return("", apperrors.ErrNotFound)
	svc := newTestAppleService(t, nonceStore)

	_, err := svc.Authenticate(context.Background(), Credential{AttemptID: "attempt-1", IDToken: "some-token"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestAppleAuthenticate_MissingInputs(t *testing.T) {
	svc := newTestAppleService(t, new(MockNonceStore))

	_, err := svc.Authenticate(context.Background(), Credential{IDToken: "token"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Authenticate(context.Background(), Credential{AttemptID: "attempt-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestAppleProviderName(t *testing.T) {
	svc := newTestAppleService(t, new(MockNonceStore))
	assert.Equal(t, entity.ProviderApple, svc.Provider())
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		in        string
		wantFirst string
		wantLast  string
	}{
		{"Jane Doe", "Jane", "Doe"},
		{"Jane", "Jane", ""},
		{"Jane van der Berg", "Jane", "van der Berg"},
		{"  Jane   Doe  ", "Jane", "Doe"},
		{"", "", ""},
	}
	for _, tt := range tests {
		first, last := splitFullName(tt.in)
		assert.Equal(t, tt.wantFirst, first, "input %q", tt.in)
		assert.Equal(t, tt.wantLast, last, "input %q", tt.in)
	}
}
