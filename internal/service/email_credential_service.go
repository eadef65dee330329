package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yourusername/sling-api/internal/domain/entity"
	"github.com/yourusername/sling-api/internal/domain/repository"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// MinPasswordLength is the sign-up wizard's password gate.
const MinPasswordLength = 6

// EmailCredentialService handles password-based sign-in and sign-up.
// There is no external ceremony and no nonce in this path.
type EmailCredentialService struct {
	userRepo repository.UserRepository
}

// NewEmailCredentialService creates the email/password provider adapter.
func NewEmailCredentialService(userRepo repository.UserRepository) (*EmailCredentialService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	return &EmailCredentialService{userRepo: userRepo}, nil
}

// Provider returns the provider name.
func (s *EmailCredentialService) Provider() string {
	return entity.ProviderEmail
}

// Authenticate performs password sign-in. The returned identity references
// the existing profile; the resolver will fetch, never create, for it.
func (s *EmailCredentialService) Authenticate(ctx context.Context, cred Credential) (*ExternalIdentity, error) {
	email := normalizeEmail(cred.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", apperrors.ErrValidation)
	}
	if cred.Password == "" {
		return nil, fmt.Errorf("%w: password is required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if user.Disabled {
		return nil, ErrAccountDisabled
	}
	if !user.PasswordAuthEnabled {
		return nil, ErrOperationNotAllowed
	}
	if !user.CheckPassword(cred.Password) {
		return nil, ErrInvalidCredential
	}

	return &ExternalIdentity{
		Provider:    entity.ProviderEmail,
		SubjectID:   user.UID,
		Email:       user.Email,
		RawFullName: user.FullName,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
	}, nil
}

// ValidateSignUp applies the sign-up gates and rejects an email that is
// already registered. It does not create anything; profile creation is the
// resolver's job.
func (s *EmailCredentialService) ValidateSignUp(ctx context.Context, email, password, firstName, lastName, displayName string) (*ExternalIdentity, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", apperrors.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, MinPasswordLength)
	}
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, fmt.Errorf("%w: display name is required", apperrors.ErrValidation)
	}

	existing, err := s.userRepo.GetByEmail(email)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if existing != nil {
		return nil, ErrAccountConflict
	}

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	return &ExternalIdentity{
		Provider:    entity.ProviderEmail,
		SubjectID:   email,
		Email:       email,
		RawFullName: strings.TrimSpace(firstName + " " + lastName),
		FirstName:   firstName,
		LastName:    lastName,
	}, nil
}
