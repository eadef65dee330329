package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// WizardStep is the email sign-up wizard's position.
type WizardStep int

const (
	StepEmail WizardStep = iota
	StepPassword
	StepProfileDetails
	StepComplete
)

// ErrDisplayNameCheckSuperseded marks an availability result that arrived
// after a newer check started. The caller must ignore it.
var ErrDisplayNameCheckSuperseded = fmt.Errorf("display name check superseded by a newer one")

// SignupWizard models the 3-step email sign-up flow: email, password,
// profile details. Each step gates locally before the next opens; the
// final step feeds AuthOrchestrator.SignUp. One wizard serves one
// sign-up session.
type SignupWizard struct {
	resolver *ProfileResolver

	mu        sync.Mutex
	step      WizardStep
	email     string
	password  string
	firstName string
	lastName  string

	// checkGen orders display-name availability checks so a stale
	// response never overrides a newer keystroke.
	checkGen uint64
}

// NewSignupWizard creates a wizard at the email step.
func NewSignupWizard(resolver *ProfileResolver) (*SignupWizard, error) {
	if resolver == nil {
		return nil, fmt.Errorf("profile resolver is required")
	}
	return &SignupWizard{resolver: resolver, step: StepEmail}, nil
}

// Step returns the wizard's current step.
func (w *SignupWizard) Step() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// SubmitEmail gates and records the email, advancing to the password step.
func (w *SignupWizard) SubmitEmail(email string) error {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email must contain '@'", apperrors.ErrValidation)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepEmail {
		return fmt.Errorf("%w: wizard is past the email step", apperrors.ErrValidation)
	}
	w.email = email
	w.step = StepPassword
	return nil
}

// SubmitPassword gates and records the password, advancing to profile details.
func (w *SignupWizard) SubmitPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, MinPasswordLength)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepPassword {
		return fmt.Errorf("%w: wizard is not at the password step", apperrors.ErrValidation)
	}
	w.password = password
	w.step = StepProfileDetails
	return nil
}

// SubmitProfileDetails gates the final step and returns the assembled
// sign-up input for the orchestrator. A taken display name blocks the
// submit but leaves the wizard at this step so the user can edit.
func (w *SignupWizard) SubmitProfileDetails(ctx context.Context, firstName, lastName, displayName string) (*SignUpInput, error) {
	if strings.TrimSpace(firstName) == "" || strings.TrimSpace(lastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", apperrors.ErrValidation)
	}
	sanitized := SanitizeDisplayName(displayName)
	if sanitized == "" {
		return nil, fmt.Errorf("%w: display name is required", apperrors.ErrValidation)
	}

	w.mu.Lock()
	if w.step != StepProfileDetails {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: wizard is not at the profile step", apperrors.ErrValidation)
	}
	email, password := w.email, w.password
	w.mu.Unlock()

	taken, err := w.resolver.CheckDisplayNameTaken(ctx, sanitized)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: display name %q is taken", apperrors.ErrConflict, sanitized)
	}

	w.mu.Lock()
	w.firstName = strings.TrimSpace(firstName)
	w.lastName = strings.TrimSpace(lastName)
	w.step = StepComplete
	input := &SignUpInput{
		Email:       email,
		Password:    password,
		FirstName:   w.firstName,
		LastName:    w.lastName,
		DisplayName: sanitized,
	}
	w.mu.Unlock()

	return input, nil
}

// CheckDisplayName runs a debounced availability check. Each call
// supersedes any in-flight one: when a newer check has started by the time
// this one finishes, its result is discarded with
// ErrDisplayNameCheckSuperseded.
func (w *SignupWizard) CheckDisplayName(ctx context.Context, displayName string) (bool, error) {
	gen := atomic.AddUint64(&w.checkGen, 1)

	taken, err := w.resolver.CheckDisplayNameTaken(ctx, displayName)

	if atomic.LoadUint64(&w.checkGen) != gen {
		return false, ErrDisplayNameCheckSuperseded
	}
	if err != nil {
		return false, err
	}
	return !taken, nil
}
