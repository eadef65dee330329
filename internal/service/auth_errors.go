package service

import (
	"errors"
	"fmt"

	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// Common authentication error taxonomy. Every credential provider maps its
// own failure codes into these so the orchestrator and handlers never see a
// provider-specific error shape.
var (
	// ErrUserCancelled means the user dismissed the provider ceremony.
	// It is swallowed silently and never shown to the user.
	ErrUserCancelled = errors.New("user cancelled sign-in")

	// ErrInvalidCredential covers bad tokens, bad passwords and failed
	// provider verification.
	ErrInvalidCredential = fmt.Errorf("%w: invalid credential", apperrors.ErrUnauthorized)

	// ErrAccountConflict means the email is already registered through a
	// different provider.
	ErrAccountConflict = fmt.Errorf("%w: account exists with different credential", apperrors.ErrConflict)

	// ErrOperationNotAllowed means the sign-in method is disabled for this account.
	ErrOperationNotAllowed = fmt.Errorf("%w: operation not allowed", apperrors.ErrForbidden)

	// ErrNetwork covers transport failures against providers or the session backend.
	ErrNetwork = errors.New("network error during sign-in")

	// ErrProfileNotFound means no profile exists for the presented credential.
	ErrProfileNotFound = fmt.Errorf("%w: profile not found", apperrors.ErrNotFound)

	// ErrAccountDisabled means the account has been disabled.
	ErrAccountDisabled = fmt.Errorf("%w: account disabled", apperrors.ErrForbidden)

	// ErrDeviceUnsupported means this environment cannot perform the
	// requested provider ceremony.
	ErrDeviceUnsupported = errors.New("device cannot perform this sign-in method")

	// ErrProviderConfiguration means a platform-level provider misconfiguration,
	// not something the user can recover from.
	ErrProviderConfiguration = errors.New("sign-in provider is misconfigured")
)

// mapBackendAuthError normalizes session-exchange error codes shared by all
// providers into the common taxonomy. Unknown codes fall through to
// ErrInvalidCredential with the code preserved for logs.
func mapBackendAuthError(code string) error {
	switch code {
	case "account-exists-with-different-credential":
		return ErrAccountConflict
	case "invalid-credential", "wrong-password", "invalid-email":
		return ErrInvalidCredential
	case "operation-not-allowed":
		return ErrOperationNotAllowed
	case "network-error":
		return ErrNetwork
	case "user-not-found":
		return ErrProfileNotFound
	case "too-many-requests":
		return apperrors.ErrTooManyRequests
	case "user-disabled":
		return ErrAccountDisabled
	default:
		return fmt.Errorf("%w (code %q)", ErrInvalidCredential, code)
	}
}
