package service

import (
	"context"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/yourusername/sling-api/internal/config"
	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

const (
	appleIssuer  = "https://appleid.apple.com"
	appleJWKSURL = "https://appleid.apple.com/auth/keys"
)

// Apple ceremony error codes reported by the client SDK.
// 1000 and 1001 are the platform configuration failures (missing
// entitlement, unsupported environment profile).
const (
	appleErrCanceled        = "canceled"
	appleErrFailed          = "failed"
	appleErrInvalidResponse = "invalidResponse"
	appleErrNotHandled      = "notHandled"
	appleErrUnknown         = "unknown"
	appleErrNotInteractive  = "notInteractive"
	appleErrConfig1         = "1000"
	appleErrConfig2         = "1001"
)

// AppleCredentialService verifies Sign in with Apple identity tokens and
// owns the nonce lifecycle for each attempt. The nonce handed to Apple is
// the SHA-256 of the raw value; the raw value stays server-side and is
// consumed exactly once during the exchange.
type AppleCredentialService struct {
	nonceStore NonceStore
	cfg        config.AppleConfig
	httpClient *http.Client
	telemetry  Telemetry

	jwksMu     sync.RWMutex
	jwksKeys   map[string]*rsa.PublicKey
	jwksExpiry time.Time
}

// NewAppleCredentialService creates the Apple provider adapter.
func NewAppleCredentialService(nonceStore NonceStore, cfg config.AppleConfig, telemetry Telemetry) (*AppleCredentialService, error) {
	if nonceStore == nil {
		return nil, fmt.Errorf("nonce store is required")
	}
	if len(cfg.ClientIDs) == 0 {
		return nil, fmt.Errorf("at least one Apple client id is required")
	}
	if telemetry == nil {
		telemetry = NoopTelemetry{}
	}
	return &AppleCredentialService{
		nonceStore: nonceStore,
		cfg:        cfg,
		telemetry:  telemetry,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Provider returns the provider name.
func (s *AppleCredentialService) Provider() string {
	return entity.ProviderApple
}

// BeginAttempt issues a fresh nonce for a sign-in attempt and returns its
// hashed form for the client to pass into the Apple ceremony. An attempt
// with an outstanding nonce is rejected.
func (s *AppleCredentialService) BeginAttempt(ctx context.Context, attemptID string) (string, error) {
	if strings.TrimSpace(attemptID) == "" {
		return "", fmt.Errorf("%w: attempt id is required", apperrors.ErrValidation)
	}

	nonce, err := GenerateNonce(DefaultNonceLength)
	if err != nil {
		s.telemetry.ReportCritical("apple nonce generation failed", err)
		return "", err
	}
	if err := s.nonceStore.Put(ctx, attemptID, nonce.Raw); err != nil {
		return "", err
	}
	return nonce.Hashed, nil
}

// Authenticate completes the Apple ceremony: it maps client-reported error
// codes, verifies the identity token against Apple's JWKS and binds it to
// the attempt's nonce. The nonce is cleared before returning, whatever the
// outcome.
func (s *AppleCredentialService) Authenticate(ctx context.Context, cred Credential) (*ExternalIdentity, error) {
	if cred.ErrorCode != "" {
		// A failed ceremony still burns the attempt's nonce.
		if err := s.nonceStore.Clear(ctx, cred.AttemptID); err != nil {
			log.Printf("[AppleAuth] Failed to clear nonce for attempt %s: %v", cred.AttemptID, err)
		}
		return nil, mapAppleCeremonyError(cred.ErrorCode)
	}

	if strings.TrimSpace(cred.AttemptID) == "" {
		return nil, fmt.Errorf("%w: attempt id is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(cred.IDToken) == "" {
		return nil, fmt.Errorf("%w: identity token is required", apperrors.ErrValidation)
	}

	rawNonce, err := s.nonceStore.Consume(ctx, cred.AttemptID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: no outstanding nonce for attempt", ErrInvalidCredential)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	claims, err := s.verifyIdentityToken(ctx, cred.IDToken)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(HashNonce(rawNonce))) != 1 {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrInvalidCredential)
	}

	first, last := splitFullName(cred.FullName)
	return &ExternalIdentity{
		Provider:    entity.ProviderApple,
		SubjectID:   claims.Subject,
		Email:       normalizeEmail(claims.Email),
		RawFullName: strings.TrimSpace(cred.FullName),
		FirstName:   first,
		LastName:    last,
	}, nil
}

// mapAppleCeremonyError maps Apple SDK error codes into the common
// taxonomy. Cancellation is a silent no-op, not a user-visible error.
func mapAppleCeremonyError(code string) error {
	switch code {
	case appleErrCanceled:
		return ErrUserCancelled
	case appleErrFailed, appleErrInvalidResponse, appleErrNotHandled, appleErrUnknown:
		return fmt.Errorf("%w (apple code %q)", ErrInvalidCredential, code)
	case appleErrNotInteractive:
		return ErrDeviceUnsupported
	case appleErrConfig1, appleErrConfig2:
		return ErrProviderConfiguration
	default:
		// Codes outside the Apple SDK table are session-exchange codes the
		// client relayed; those are shared across providers.
		return mapBackendAuthError(code)
	}
}

type appleIDTokenClaims struct {
	Email         string      `json:"email"`
	EmailVerified interface{} `json:"email_verified"`
	Nonce         string      `json:"nonce"`
	jwt.RegisteredClaims
}

func (s *AppleCredentialService) verifyIdentityToken(ctx context.Context, idToken string) (*appleIDTokenClaims, error) {
	claims := &appleIDTokenClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	token, err := parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("missing kid header")
		}
		return s.getApplePublicKey(ctx, strings.TrimSpace(kid))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if token == nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid apple token", ErrInvalidCredential)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	if claims.Issuer != appleIssuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidCredential)
	}
	if !s.isAllowedAudience(claims.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidCredential)
	}
	if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidCredential)
	}

	return claims, nil
}

func (s *AppleCredentialService) isAllowedAudience(audience jwt.ClaimStrings) bool {
	for _, aud := range audience {
		for _, allowed := range s.cfg.ClientIDs {
			if allowed != "" && allowed == aud {
				return true
			}
		}
	}
	return false
}

type appleJWKSet struct {
	Keys []appleJWK `json:"keys"`
}

type appleJWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (s *AppleCredentialService) getApplePublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := time.Now()
	s.jwksMu.RLock()
	if key, ok := s.jwksKeys[kid]; ok && now.Before(s.jwksExpiry) {
		s.jwksMu.RUnlock()
		return key, nil
	}
	s.jwksMu.RUnlock()

	if err := s.refreshAppleJWKS(ctx); err != nil {
		return nil, err
	}

	s.jwksMu.RLock()
	defer s.jwksMu.RUnlock()
	key, ok := s.jwksKeys[kid]
	if !ok || key == nil {
		return nil, fmt.Errorf("jwks key not found")
	}
	return key, nil
}

func (s *AppleCredentialService) refreshAppleJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appleJWKSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create apple jwks request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to fetch apple jwks: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: apple jwks status=%d body=%s", ErrNetwork, resp.StatusCode, string(body))
	}

	var set appleJWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode apple jwks response: %w", err)
	}
	if len(set.Keys) == 0 {
		return fmt.Errorf("empty apple jwks response")
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if strings.TrimSpace(jwk.Kid) == "" || jwk.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(jwk.N, jwk.E)
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("no usable rsa keys in apple jwks")
	}

	s.jwksMu.Lock()
	s.jwksKeys = keys
	s.jwksExpiry = time.Now().Add(time.Hour)
	s.jwksMu.Unlock()
	return nil
}

// parseRSAPublicKey builds an RSA public key from base64url JWK components.
func parseRSAPublicKey(nEnc, eEnc string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nEnc)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eEnc)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nBytes)
	eInt := 0
	for _, b := range eBytes {
		eInt = eInt<<8 + int(b)
	}
	if n.Sign() <= 0 || eInt <= 0 {
		return nil, fmt.Errorf("invalid rsa jwk")
	}

	return &rsa.PublicKey{N: n, E: eInt}, nil
}

// splitFullName splits a raw full name into first and last parts.
func splitFullName(fullName string) (string, string) {
	fields := strings.Fields(fullName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

// normalizeEmail lowercases and trims an email address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
