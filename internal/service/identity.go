package service

import (
	"context"
	"log"
)

// ExternalIdentity is the normalized result of one provider ceremony. It is
// produced once per successful sign-in and consumed immediately by the
// profile resolver; it is never persisted.
type ExternalIdentity struct {
	Provider    string
	SubjectID   string
	Email       string
	RawFullName string
	FirstName   string
	LastName    string
	PictureURL  string
}

// Credential is the provider-specific input to one sign-in ceremony.
// Exactly one combination of fields is filled depending on the provider.
type Credential struct {
	// AttemptID identifies the in-flight attempt; it keys the nonce
	// for the Apple exchange.
	AttemptID string

	// IDToken is the Apple or Google identity token.
	IDToken string
	// ErrorCode carries a ceremony failure reported by the client SDK
	// instead of a token.
	ErrorCode string

	// FullName is the user's full name as captured during the ceremony.
	// Apple only surfaces it on the first authorization, never in the token.
	FullName string

	// Email/Password back the email provider.
	Email    string
	Password string
}

// CredentialProvider drives one external sign-in ceremony and normalizes
// its result or failure into the common shape. Implementations must be safe
// for concurrent attempts with distinct attempt IDs.
type CredentialProvider interface {
	Provider() string
	Authenticate(ctx context.Context, cred Credential) (*ExternalIdentity, error)
}

// NonceStore holds the raw nonce for one in-flight Apple attempt.
// Single-use: Consume removes the value, a second read fails.
type NonceStore interface {
	Put(ctx context.Context, attemptID, rawNonce string) error
	Consume(ctx context.Context, attemptID string) (string, error)
	Clear(ctx context.Context, attemptID string) error
}

// Telemetry receives critical failures worth reporting out of band. The
// auth core tolerates a no-op implementation.
type Telemetry interface {
	ReportCritical(message string, err error)
}

// NoopTelemetry discards all reports.
type NoopTelemetry struct{}

func (NoopTelemetry) ReportCritical(message string, err error) {}

// LogTelemetry writes critical reports to the process log.
type LogTelemetry struct{}

func (LogTelemetry) ReportCritical(message string, err error) {
	log.Printf("[Telemetry] CRITICAL: %s: %v", message, err)
}
