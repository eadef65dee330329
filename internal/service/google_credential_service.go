package service

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/yourusername/sling-api/internal/config"
	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

const googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleCredentialService verifies Google identity tokens against Google's
// JWKS and normalizes ceremony failures into the common taxonomy.
type GoogleCredentialService struct {
	cfg        config.GoogleConfig
	httpClient *http.Client

	jwksMu     sync.RWMutex
	jwksKeys   map[string]*rsa.PublicKey
	jwksExpiry time.Time
}

// NewGoogleCredentialService creates the Google provider adapter.
func NewGoogleCredentialService(cfg config.GoogleConfig) (*GoogleCredentialService, error) {
	if strings.TrimSpace(cfg.WebClientID) == "" &&
		strings.TrimSpace(cfg.AndroidClientID) == "" &&
		strings.TrimSpace(cfg.IOSClientID) == "" {
		return nil, fmt.Errorf("at least one Google client id is required")
	}
	return &GoogleCredentialService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Provider returns the provider name.
func (s *GoogleCredentialService) Provider() string {
	return entity.ProviderGoogle
}

// Authenticate verifies a Google identity token produced by the client
// ceremony. Cancellation maps to the silent ErrUserCancelled.
func (s *GoogleCredentialService) Authenticate(ctx context.Context, cred Credential) (*ExternalIdentity, error) {
	if cred.ErrorCode != "" {
		return nil, mapGoogleCeremonyError(cred.ErrorCode)
	}
	if strings.TrimSpace(cred.IDToken) == "" {
		return nil, fmt.Errorf("%w: identity token is required", apperrors.ErrValidation)
	}

	info, err := s.verifyIDToken(ctx, cred.IDToken)
	if err != nil {
		return nil, err
	}

	fullName := strings.TrimSpace(strings.TrimSpace(info.GivenName) + " " + strings.TrimSpace(info.FamilyName))
	return &ExternalIdentity{
		Provider:    entity.ProviderGoogle,
		SubjectID:   info.Sub,
		Email:       normalizeEmail(info.Email),
		RawFullName: fullName,
		FirstName:   strings.TrimSpace(info.GivenName),
		LastName:    strings.TrimSpace(info.FamilyName),
		PictureURL:  info.Picture,
	}, nil
}

// mapGoogleCeremonyError maps Google SDK error codes into the common taxonomy.
func mapGoogleCeremonyError(code string) error {
	switch code {
	case "canceled", "sign_in_cancelled":
		return ErrUserCancelled
	case "network_error":
		return ErrNetwork
	case "sign_in_not_available":
		return ErrDeviceUnsupported
	case "developer_error":
		return ErrProviderConfiguration
	default:
		// Codes outside the Google SDK table are session-exchange codes the
		// client relayed; those are shared across providers.
		return mapBackendAuthError(code)
	}
}

type parsedGoogleTokenInfo struct {
	Sub           string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

type googleIDTokenClaims struct {
	Email         string      `json:"email"`
	EmailVerified interface{} `json:"email_verified"`
	GivenName     string      `json:"given_name"`
	FamilyName    string      `json:"family_name"`
	Picture       string      `json:"picture"`
	jwt.RegisteredClaims
}

func (s *GoogleCredentialService) verifyIDToken(ctx context.Context, idToken string) (*parsedGoogleTokenInfo, error) {
	idToken = strings.TrimSpace(idToken)

	claims := &googleIDTokenClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	token, err := parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("missing kid header")
		}
		return s.getGooglePublicKey(ctx, strings.TrimSpace(kid))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if token == nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid google token", ErrInvalidCredential)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	if claims.Issuer != "accounts.google.com" && claims.Issuer != "https://accounts.google.com" {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidCredential)
	}
	if !s.isAllowedAudience(claims.Audience) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidCredential)
	}
	if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: token expired", ErrInvalidCredential)
	}

	emailVerified, _ := parseEmailVerifiedClaim(claims.EmailVerified)

	return &parsedGoogleTokenInfo{
		Sub:           strings.TrimSpace(claims.Subject),
		Email:         strings.TrimSpace(claims.Email),
		EmailVerified: emailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Picture:       strings.TrimSpace(claims.Picture),
	}, nil
}

// parseEmailVerifiedClaim tolerates both bool and string encodings.
func parseEmailVerifiedClaim(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true":
			return true, true
		case "false":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

func (s *GoogleCredentialService) isAllowedAudience(audience jwt.ClaimStrings) bool {
	allowed := []string{
		strings.TrimSpace(s.cfg.WebClientID),
		strings.TrimSpace(s.cfg.AndroidClientID),
		strings.TrimSpace(s.cfg.IOSClientID),
	}
	for _, aud := range audience {
		for _, a := range allowed {
			if a != "" && a == strings.TrimSpace(aud) {
				return true
			}
		}
	}
	return false
}

func (s *GoogleCredentialService) getGooglePublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := time.Now()
	s.jwksMu.RLock()
	if key, ok := s.jwksKeys[kid]; ok && now.Before(s.jwksExpiry) {
		s.jwksMu.RUnlock()
		return key, nil
	}
	s.jwksMu.RUnlock()

	if err := s.refreshGoogleJWKS(ctx); err != nil {
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

func (s *GoogleCredentialService) refreshGoogleJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleJWKSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create google jwks request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to fetch google jwks: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: google jwks status=%d body=%s", ErrNetwork, resp.StatusCode, string(body))
	}

	var set appleJWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode google jwks response: %w", err)
	}
	if len(set.Keys) == 0 {
		return fmt.Errorf("empty google jwks response")
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
		return fmt.Errorf("no usable rsa keys in google jwks")
	}

	ttl := parseJWKSMaxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = time.Hour
	}

	s.jwksMu.Lock()
	s.jwksKeys = keys
	s.jwksExpiry = time.Now().Add(ttl)
	s.jwksMu.Unlock()
	return nil
}

// parseJWKSMaxAge extracts max-age from a Cache-Control header.
func parseJWKSMaxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(strings.ToLower(part), "max-age=") {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(part), "max-age="))
		seconds, err := time.ParseDuration(value + "s")
		if err != nil {
			return 0
		}
		if seconds < time.Minute {
			return time.Minute
		}
		return seconds
	}
	return 0
}
