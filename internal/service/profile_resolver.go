package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/sling-api/internal/domain/entity"
	"github.com/yourusername/sling-api/internal/domain/repository"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// ResolveOptions carries caller-supplied profile inputs that are not part
// of the provider identity itself.
type ResolveOptions struct {
	// ExplicitDisplayName wins over the provider's full name when set.
	ExplicitDisplayName string
	// Password enables password auth for the new profile (email sign-up only).
	Password string
}

// ProfileResolver is the single entry point for the create-or-fetch
// sequence. Profiles are keyed by email: the first successful
// authentication creates the record, every later one fetches it unchanged.
type ProfileResolver struct {
	userRepo     repository.UserRepository
	identityRepo repository.UserIdentityRepository
	emailService EmailService
	telemetry    Telemetry
}

// NewProfileResolver creates a profile resolver.
func NewProfileResolver(
	userRepo repository.UserRepository,
	identityRepo repository.UserIdentityRepository,
	emailService EmailService,
	telemetry Telemetry,
) (*ProfileResolver, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if identityRepo == nil {
		return nil, fmt.Errorf("identity repository is required")
	}
	if emailService == nil {
		emailService = &NoopEmailService{}
	}
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}
	return &ProfileResolver{
		userRepo:     userRepo,
		identityRepo: identityRepo,
		emailService: emailService,
		telemetry:    telemetry,
	}, nil
}

// Resolve fetches the profile for the identity's email or creates it with
// default starting values. The returned flag reports whether the profile
// was just created. An existing profile is returned unmodified; newer
// values in the identity never overwrite it.
func (r *ProfileResolver) Resolve(ctx context.Context, identity *ExternalIdentity, opts ResolveOptions) (*entity.User, bool, error) {
	if identity == nil {
		return nil, false, fmt.Errorf("%w: identity is required", apperrors.ErrValidation)
	}
	email := normalizeEmail(identity.Email)
	if email == "" {
		return nil, false, fmt.Errorf("%w: identity has no email", ErrInvalidCredential)
	}

	existing, err := r.userRepo.GetByEmail(email)
	if err == nil {
		r.ensureIdentityLink(existing.ID, identity)
		return existing, false, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	user, err := r.buildNewProfile(email, identity, opts)
	if err != nil {
		return nil, false, err
	}

	if err := r.userRepo.Create(user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			// Creation race: another device won. Fetch and return theirs.
			winner, fetchErr := r.userRepo.GetByEmail(email)
			if fetchErr != nil {
				return nil, false, fmt.Errorf("%w: %v", ErrNetwork, fetchErr)
			}
			r.ensureIdentityLink(winner.ID, identity)
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}

	r.ensureIdentityLink(user.ID, identity)

	if err := r.emailService.SendWelcome(ctx, user.Email, user.DisplayName); err != nil {
		// Welcome mail never blocks sign-up.
		log.Printf("[ProfileResolver] Failed to send welcome email to %s: %v", user.Email, err)
	}

	log.Printf("[ProfileResolver] Created profile uid=%s email=%s displayName=%s", user.UID, user.Email, user.DisplayName)
	return user, true, nil
}

// CheckDisplayNameTaken reports whether a sanitized display name is
// already in use.
func (r *ProfileResolver) CheckDisplayNameTaken(ctx context.Context, displayName string) (bool, error) {
	name := SanitizeDisplayName(displayName)
	if name == "" {
		return false, fmt.Errorf("%w: display name is required", apperrors.ErrValidation)
	}
	_, err := r.userRepo.GetByDisplayName(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrNetwork, err)
}

func (r *ProfileResolver) buildNewProfile(email string, identity *ExternalIdentity, opts ResolveOptions) (*entity.User, error) {
	displayName, err := r.pickDisplayName(opts.ExplicitDisplayName, identity.RawFullName)
	if err != nil {
		return nil, err
	}

	password := opts.Password
	passwordAuth := password != ""
	if !passwordAuth {
		// Provider-backed accounts still need a non-empty stored hash.
		random, err := generateRandomHex(32)
		if err != nil {
			return nil, fmt.Errorf("secure random source unavailable: %w", err)
		}
		password = random
	}

	fullName := strings.TrimSpace(identity.RawFullName)
	if fullName == "" {
		fullName = strings.TrimSpace(identity.FirstName + " " + identity.LastName)
	}

	return &entity.User{
		UID:                 uuid.NewString(),
		Email:               email,
		Password:            password,
		PasswordAuthEnabled: passwordAuth,
		DisplayName:         displayName,
		FirstName:           identity.FirstName,
		LastName:            identity.LastName,
		FullName:            fullName,
		ProfilePictureURL:   identity.PictureURL,
		BlitzPoints:         entity.DefaultBlitzPoints,
		TotalBets:           0,
		TotalWinnings:       0,
	}, nil
}

// pickDisplayName applies the name priority (explicit input, then provider
// full name, then the "User" literal) and resolves collisions with a
// numeric suffix.
func (r *ProfileResolver) pickDisplayName(explicit, providerFullName string) (string, error) {
	base := SanitizeDisplayName(explicit)
	if base == "" {
		base = SanitizeDisplayName(providerFullName)
	}
	if base == "" {
		base = "User"
	}

	candidates := []string{base}
	for i := 1; i <= 50; i++ {
		candidates = append(candidates, fmt.Sprintf("%s%d", base, i))
	}

	for _, candidate := range candidates {
		_, err := r.userRepo.GetByDisplayName(candidate)
		if errors.Is(err, apperrors.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}

	suffix, err := generateRandomHex(3)
	if err != nil {
		return "", err
	}
	return base + suffix, nil
}

// ensureIdentityLink records the (provider, subject) pair for the user.
// Link failures are logged, not fatal; the profile is already resolved.
func (r *ProfileResolver) ensureIdentityLink(userID uint, identity *ExternalIdentity) {
	if identity.Provider == entity.ProviderEmail || identity.SubjectID == "" {
		return
	}

	existing, err := r.identityRepo.GetByProviderSub(identity.Provider, identity.SubjectID)
	if err == nil && existing != nil {
		return
	}
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("[ProfileResolver] Failed to look up identity link %s/%s: %v", identity.Provider, identity.SubjectID, err)
		return
	}

	link := &entity.UserIdentity{
		UserID:        userID,
		Provider:      identity.Provider,
		ProviderSub:   identity.SubjectID,
		ProviderEmail: normalizeEmail(identity.Email),
	}
	if err := r.identityRepo.Create(link); err != nil && !errors.Is(err, apperrors.ErrConflict) {
		log.Printf("[ProfileResolver] Failed to create identity link %s/%s: %v", identity.Provider, identity.SubjectID, err)
	}
}

// SanitizeDisplayName removes every whitespace character from a name.
// Idempotent: sanitizing a sanitized name is a no-op.
func SanitizeDisplayName(name string) string {
	return strings.Join(strings.Fields(name), "")
}

// generateRandomHex returns byteLen random bytes hex-encoded.
func generateRandomHex(byteLen int) (string, error) {
	if byteLen <= 0 {
		byteLen = 16
	}
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
