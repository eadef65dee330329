package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
	"github.com/yourusername/sling-api/pkg/auth/manager"
)

// AuthState is the orchestrator's position in one sign-in transaction.
type AuthState string

const (
	StateIdle                 AuthState = "idle"
	StateAwaitingProvider     AuthState = "awaiting_provider"
	StateExchangingCredential AuthState = "exchanging_credential"
	StateResolvingProfile     AuthState = "resolving_profile"
	StateSucceeded            AuthState = "succeeded"
	StateFailed               AuthState = "failed"
)

// ErrAttemptInProgress is returned when a second sign-in starts while one
// is still running.
var ErrAttemptInProgress = fmt.Errorf("%w: sign-in attempt already in progress", apperrors.ErrConflict)

// AuthResult is emitted once per successful orchestration run. IsNewUser
// distinguishes "just created" from "found existing" so the caller can
// offer first-run onboarding.
type AuthResult struct {
	User      *entity.User
	IsNewUser bool
	Token     *manager.TokenResponse
}

// SignInInput carries one provider ceremony result into the orchestrator.
type SignInInput struct {
	Provider   string
	Credential Credential
	Options    ResolveOptions

	DeviceID  string
	IPAddress string
	UserAgent string
}

// SignUpInput carries the email wizard's final submit.
type SignUpInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	DisplayName string

	DeviceID  string
	IPAddress string
	UserAgent string
}

// AuthOrchestrator coordinates one credential provider and the profile
// resolver into a single sign-in/sign-up transaction. Steps are strictly
// sequential; a second attempt for the same transaction key is refused
// while one is in flight. Keys scope to one device's ceremony, so
// concurrent sign-ins from different devices never contend.
type AuthOrchestrator struct {
	providers    map[string]CredentialProvider
	resolver     *ProfileResolver
	emailSvc     *EmailCredentialService
	tokenManager *manager.TokenManager
	nonceStore   NonceStore
	telemetry    Telemetry

	// ceremonyTimeout bounds one full run. Zero disables the watchdog.
	ceremonyTimeout time.Duration

	mu       sync.Mutex
	inFlight map[string]AuthState
}

// NewAuthOrchestrator wires the orchestrator. The email service doubles as
// a provider and as the sign-up validator.
func NewAuthOrchestrator(
	providers []CredentialProvider,
	emailSvc *EmailCredentialService,
	resolver *ProfileResolver,
	tokenManager *manager.TokenManager,
	nonceStore NonceStore,
	telemetry Telemetry,
	ceremonyTimeout time.Duration,
) (*AuthOrchestrator, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one credential provider is required")
	}
	if emailSvc == nil {
		return nil, fmt.Errorf("email credential service is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("profile resolver is required")
	}
	if tokenManager == nil {
		return nil, fmt.Errorf("token manager is required")
	}
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}

	byName := make(map[string]CredentialProvider, len(providers))
	for _, p := range providers {
		byName[p.Provider()] = p
	}

	return &AuthOrchestrator{
		providers:       byName,
		emailSvc:        emailSvc,
		resolver:        resolver,
		tokenManager:    tokenManager,
		nonceStore:      nonceStore,
		telemetry:       telemetry,
		ceremonyTimeout: ceremonyTimeout,
		inFlight:        make(map[string]AuthState),
	}, nil
}

// State returns the orchestration state of one transaction key. Keys with
// no run in flight are Idle.
func (o *AuthOrchestrator) State(key string) AuthState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.inFlight[key]; ok {
		return s
	}
	return StateIdle
}

// guardKey picks the transaction key for the reentrancy guard. A double
// tap repeats from the same device, so the device scopes the guard; the
// attempt id covers clients that begin a ceremony before registering a
// device. A run with neither gets a key of its own and never contends.
func (input SignInInput) guardKey() string {
	if input.DeviceID != "" {
		return input.DeviceID
	}
	if input.Credential.AttemptID != "" {
		return input.Credential.AttemptID
	}
	return uuid.NewString()
}

func (input SignUpInput) guardKey() string {
	if input.DeviceID != "" {
		return input.DeviceID
	}
	if input.Email != "" {
		return input.Email
	}
	return uuid.NewString()
}

// SignIn runs one provider-backed sign-in transaction.
func (o *AuthOrchestrator) SignIn(ctx context.Context, input SignInInput) (*AuthResult, error) {
	key := input.guardKey()
	if err := o.begin(key); err != nil {
		return nil, err
	}

	ctx, cancel := o.withCeremonyTimeout(ctx)
	defer cancel()

	provider, ok := o.providers[input.Provider]
	if !ok {
		o.finishFailed(ctx, key, input.Credential.AttemptID)
		return nil, fmt.Errorf("%w: unknown provider %q", apperrors.ErrValidation, input.Provider)
	}

	o.setState(key, StateExchangingCredential)
	identity, err := provider.Authenticate(ctx, input.Credential)
	if err != nil {
		if errors.Is(err, ErrUserCancelled) {
			// Cancellation is a normal terminal transition back to Idle.
			o.end(key)
			return nil, err
		}
		o.finishFailed(ctx, key, input.Credential.AttemptID)
		return nil, o.mapRunError(ctx, err)
	}

	return o.resolveAndIssue(ctx, key, identity, input.Options, input.Credential.AttemptID, input.DeviceID, input.IPAddress, input.UserAgent)
}

// SignUp runs the email wizard's final submit as one transaction.
func (o *AuthOrchestrator) SignUp(ctx context.Context, input SignUpInput) (*AuthResult, error) {
	key := input.guardKey()
	if err := o.begin(key); err != nil {
		return nil, err
	}

	ctx, cancel := o.withCeremonyTimeout(ctx)
	defer cancel()

	o.setState(key, StateExchangingCredential)
	identity, err := o.emailSvc.ValidateSignUp(ctx, input.Email, input.Password, input.FirstName, input.LastName, input.DisplayName)
	if err != nil {
		o.finishFailed(ctx, key, "")
		return nil, o.mapRunError(ctx, err)
	}

	opts := ResolveOptions{
		ExplicitDisplayName: input.DisplayName,
		Password:            input.Password,
	}
	return o.resolveAndIssue(ctx, key, identity, opts, "", input.DeviceID, input.IPAddress, input.UserAgent)
}

func (o *AuthOrchestrator) resolveAndIssue(ctx context.Context, key string, identity *ExternalIdentity, opts ResolveOptions, attemptID, deviceID, ipAddress, userAgent string) (*AuthResult, error) {
	o.setState(key, StateResolvingProfile)
	user, isNewUser, err := o.resolver.Resolve(ctx, identity, opts)
	if err != nil {
		o.finishFailed(ctx, key, attemptID)
		return nil, o.mapRunError(ctx, err)
	}
	if user.Disabled {
		o.finishFailed(ctx, key, attemptID)
		return nil, ErrAccountDisabled
	}

	token, err := o.tokenManager.GenerateTokenPair(user.ID, deviceID, ipAddress, userAgent)
	if err != nil {
		o.finishFailed(ctx, key, attemptID)
		return nil, o.mapRunError(ctx, err)
	}

	o.setState(key, StateSucceeded)
	log.Printf("[AuthOrchestrator] Sign-in succeeded provider=%s uid=%s isNewUser=%t", identity.Provider, user.UID, isNewUser)
	o.end(key)

	return &AuthResult{User: user, IsNewUser: isNewUser, Token: token}, nil
}

// begin enforces the per-transaction reentrancy guard and enters
// AwaitingProvider for the key.
func (o *AuthOrchestrator) begin(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.inFlight[key] {
	case StateAwaitingProvider, StateExchangingCredential, StateResolvingProfile:
		return ErrAttemptInProgress
	}
	o.inFlight[key] = StateAwaitingProvider
	return nil
}

func (o *AuthOrchestrator) setState(key string, s AuthState) {
	o.mu.Lock()
	o.inFlight[key] = s
	o.mu.Unlock()
}

// end retires the transaction; the key reads as Idle again.
func (o *AuthOrchestrator) end(key string) {
	o.mu.Lock()
	delete(o.inFlight, key)
	o.mu.Unlock()
}

// finishFailed clears the attempt's nonce and retires the transaction so
// the user can retry.
func (o *AuthOrchestrator) finishFailed(ctx context.Context, key, attemptID string) {
	o.setState(key, StateFailed)
	if o.nonceStore != nil && attemptID != "" {
		if err := o.nonceStore.Clear(ctx, attemptID); err != nil {
			log.Printf("[AuthOrchestrator] Failed to clear nonce for attempt %s: %v", attemptID, err)
		}
	}
	o.end(key)
}

// withCeremonyTimeout bounds the run when a watchdog is configured.
func (o *AuthOrchestrator) withCeremonyTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.ceremonyTimeout > 0 {
		return context.WithTimeout(ctx, o.ceremonyTimeout)
	}
	return context.WithCancel(ctx)
}

// mapRunError converts a timed-out run into a network error and reports
// unexpected failures.
func (o *AuthOrchestrator) mapRunError(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: sign-in ceremony timed out", ErrNetwork)
	}
	if errors.Is(err, ErrProviderConfiguration) {
		o.telemetry.ReportCritical("provider configuration failure", err)
	}
	return err
}
