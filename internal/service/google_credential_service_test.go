package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/sling-api/internal/config"
	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

func newTestGoogleService(t *testing.T) *GoogleCredentialService {
	t.Helper()
	svc, err := NewGoogleCredentialService(config.GoogleConfig{IOSClientID: "ios-client-id"})
	require.NoError(t, err)
	return svc
}

func TestNewGoogleCredentialService_RequiresClientID(t *testing.T) {
	_, err := NewGoogleCredentialService(config.GoogleConfig{})
	require.Error(t, err)
}

func TestGoogleProviderName(t *testing.T) {
	assert.Equal(t, entity.ProviderGoogle, newTestGoogleService(t).Provider())
}

func TestGoogleAuthenticate_ErrorCodeMapping(t *testing.T) {
	tests := []struct {
		code    string
		wantErr error
	}{
		{"canceled", ErrUserCancelled},
		{"sign_in_cancelled", ErrUserCancelled},
		{"network_error", ErrNetwork},
		{"sign_in_not_available", ErrDeviceUnsupported},
		{"developer_error", ErrProviderConfiguration},
		{"weird_code", ErrInvalidCredential},
		// Session-exchange codes fall through to the shared table.
		{"too-many-requests", apperrors.ErrTooManyRequests},
		{"user-not-found", ErrProfileNotFound},
	}

	svc := newTestGoogleService(t)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := svc.Authenticate(context.Background(), Credential{ErrorCode: tt.code})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGoogleAuthenticate_MissingToken(t *testing.T) {
	svc := newTestGoogleService(t)
	_, err := svc.Authenticate(context.Background(), Credential{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestMapBackendAuthError(t *testing.T) {
	tests := []struct {
		code    string
		wantErr error
	}{
		{"account-exists-with-different-credential", ErrAccountConflict},
		{"invalid-credential", ErrInvalidCredential},
		{"wrong-password", ErrInvalidCredential},
		{"invalid-email", ErrInvalidCredential},
		{"operation-not-allowed", ErrOperationNotAllowed},
		{"network-error", ErrNetwork},
		{"user-not-found", ErrProfileNotFound},
		{"too-many-requests", apperrors.ErrTooManyRequests},
		{"user-disabled", ErrAccountDisabled},
		{"unmapped-code", ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.ErrorIs(t, mapBackendAuthError(tt.code), tt.wantErr)
		})
	}
}
