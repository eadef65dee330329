package manager

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/sling-api/internal/domain/entity"
	"github.com/yourusername/sling-api/internal/domain/repository"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
	"github.com/yourusername/sling-api/pkg/auth"
)

const (
	// Refresh-token lifetime (30 days, sliding window per refresh).
	RefreshTokenLifetime = 30 * 24 * time.Hour
	// Default cap on active refresh tokens per user.
	DefaultMaxRefreshTokensPerUser = 10
)

// TokenErrorType identifies a token error category.
type TokenErrorType string

const (
	TokenGenerationFailed TokenErrorType = "TOKEN_GENERATION_FAILED"
	InvalidRefreshToken   TokenErrorType = "INVALID_REFRESH_TOKEN"
	ExpiredRefreshToken   TokenErrorType = "EXPIRED_REFRESH_TOKEN"
	UserNotFound          TokenErrorType = "USER_NOT_FOUND"
	InactiveUser          TokenErrorType = "INACTIVE_USER"
	DatabaseError         TokenErrorType = "DATABASE_ERROR"
	TooManySessions       TokenErrorType = "TOO_MANY_SESSIONS"
)

// TokenError carries a typed token failure.
type TokenError struct {
	Type    TokenErrorType
	Message string
	Err     error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// NewTokenError creates a new typed token error.
func NewTokenError(tokenType TokenErrorType, message string, err error) *TokenError {
	return &TokenError{
		Type:    tokenType,
		Message: message,
		Err:     err,
	}
}

// TokenResponse is the token pair handed to mobile clients.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       uint   `json:"user_id"`
}

// TokenManager issues, refreshes and revokes token pairs. Refresh tokens
// are stored hash-only; the raw value exists only in the client response.
type TokenManager struct {
	jwtService              *auth.JWTService
	refreshTokenRepo        repository.RefreshTokenRepository
	userRepo                repository.UserRepository
	accessTokenExpiry       time.Duration
	refreshTokenExpiry      time.Duration
	maxRefreshTokensPerUser int
}

// NewTokenManager creates a new token manager and returns an error on missing dependencies.
func NewTokenManager(
	jwtService *auth.JWTService,
	refreshTokenRepo repository.RefreshTokenRepository,
	userRepo repository.UserRepository,
) (*TokenManager, error) {
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for TokenManager")
	}
	if refreshTokenRepo == nil {
		return nil, fmt.Errorf("RefreshTokenRepository is required for TokenManager")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for TokenManager")
	}

	return &TokenManager{
		jwtService:              jwtService,
		refreshTokenRepo:        refreshTokenRepo,
		userRepo:                userRepo,
		accessTokenExpiry:       30 * time.Minute,
		refreshTokenExpiry:      RefreshTokenLifetime,
		maxRefreshTokensPerUser: DefaultMaxRefreshTokensPerUser,
	}, nil
}

// SetAccessTokenExpiry sets the access-token lifetime.
func (m *TokenManager) SetAccessTokenExpiry(duration time.Duration) {
	if duration > 0 {
		m.accessTokenExpiry = duration
		log.Printf("[TokenManager] Access token expiry set to: %v", duration)
	} else {
		log.Printf("[TokenManager] Warning: Invalid access token expiry duration provided: %v. Using default: %v", duration, m.accessTokenExpiry)
	}
}

// SetRefreshTokenExpiry sets the refresh-token lifetime.
func (m *TokenManager) SetRefreshTokenExpiry(duration time.Duration) {
	if duration > 0 {
		m.refreshTokenExpiry = duration
		log.Printf("[TokenManager] Refresh token expiry set to: %v", duration)
	} else {
		log.Printf("[TokenManager] Warning: Invalid refresh token expiry duration provided: %v. Using default: %v", duration, m.refreshTokenExpiry)
	}
}

// SetMaxRefreshTokensPerUser sets the session cap per user.
func (m *TokenManager) SetMaxRefreshTokensPerUser(limit int) {
	if limit > 0 {
		m.maxRefreshTokensPerUser = limit
		log.Printf("[TokenManager] Max refresh tokens per user set to: %d", limit)
	} else {
		log.Printf("[TokenManager] Warning: Invalid max refresh tokens per user provided: %d. Using default: %d", limit, m.maxRefreshTokensPerUser)
	}
}

// GetMaxRefreshTokensPerUser returns the session cap per user.
func (m *TokenManager) GetMaxRefreshTokensPerUser() int {
	return m.maxRefreshTokensPerUser
}

// GenerateTokenPair creates a new access/refresh token pair for the user.
func (m *TokenManager) GenerateTokenPair(userID uint, deviceID, ipAddress, userAgent string) (*TokenResponse, error) {
	user, err := m.userRepo.GetByID(userID)
	if err != nil {
		log.Printf("[TokenManager] Failed to load user ID=%d: %v", userID, err)
		return nil, NewTokenError(UserNotFound, "user not found", err)
	}
	if user.Disabled {
		return nil, NewTokenError(InactiveUser, "account is disabled", nil)
	}

	accessToken, err := m.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("[TokenManager] Failed to generate access token for user ID=%d: %v", userID, err)
		return nil, NewTokenError(TokenGenerationFailed, "failed to generate access token", err)
	}

	refreshTokenString, err := m.generateRefreshToken(userID, deviceID, ipAddress, userAgent)
	if err != nil {
		log.Printf("[TokenManager] Failed to generate refresh token for user ID=%d: %v", userID, err)
		return nil, NewTokenError(TokenGenerationFailed, "failed to generate refresh token", err)
	}

	if err := m.limitUserSessions(userID); err != nil {
		log.Printf("[TokenManager] Failed to enforce session limit for user ID=%d: %v", userID, err)
	}

	log.Printf("[TokenManager] Generated token pair for user ID=%d, device=%s", userID, deviceID)

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshTokenString,
		TokenType:    "Bearer",
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
		UserID:       userID,
	}, nil
}

// RefreshTokens rotates a refresh token into a fresh token pair.
func (m *TokenManager) RefreshTokens(refreshToken, deviceID, ipAddress, userAgent string) (*TokenResponse, error) {
	tokenEntity, err := m.refreshTokenRepo.GetTokenByValue(HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrExpiredToken) {
			return nil, NewTokenError(ExpiredRefreshToken, "refresh token has expired", err)
		}
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, NewTokenError(InvalidRefreshToken, "invalid refresh token", err)
		}
		log.Printf("[TokenManager] Failed to look up refresh token: %v", err)
		return nil, NewTokenError(DatabaseError, "failed to verify refresh token", err)
	}

	if !tokenEntity.IsValid() {
		return nil, NewTokenError(InvalidRefreshToken, "refresh token has been revoked", nil)
	}

	// Rotate: the presented token is spent regardless of what follows.
	if err := m.refreshTokenRepo.MarkTokenAsExpiredByID(tokenEntity.ID); err != nil {
		log.Printf("[TokenManager] Failed to expire rotated refresh token ID=%d: %v", tokenEntity.ID, err)
	}

	return m.GenerateTokenPair(tokenEntity.UserID, deviceID, ipAddress, userAgent)
}

// RevokeRefreshToken revokes a single refresh token by value.
func (m *TokenManager) RevokeRefreshToken(refreshToken string) error {
	if err := m.refreshTokenRepo.MarkTokenAsExpired(HashToken(refreshToken)); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[TokenManager] Attempted to revoke an unknown refresh token.")
			return NewTokenError(InvalidRefreshToken, "token not found", err)
		}
		log.Printf("[TokenManager] Failed to revoke refresh token: %v", err)
		return NewTokenError(DatabaseError, "failed to revoke token", err)
	}
	log.Printf("[TokenManager] Revoked refresh token")
	return nil
}

// RevokeAllUserTokens revokes every refresh token the user holds.
func (m *TokenManager) RevokeAllUserTokens(userID uint) error {
	if err := m.refreshTokenRepo.MarkAllAsExpiredForUser(userID); err != nil {
		log.Printf("[TokenManager] Failed to revoke all refresh tokens for user ID=%d: %v", userID, err)
		return NewTokenError(DatabaseError, "failed to revoke refresh tokens", err)
	}
	log.Printf("[TokenManager] Revoked all tokens for user ID=%d", userID)
	return nil
}

// GetUserActiveSessions lists the user's active sessions.
func (m *TokenManager) GetUserActiveSessions(userID uint) ([]entity.RefreshToken, error) {
	tokensPtr, err := m.refreshTokenRepo.GetActiveTokensForUser(userID)
	if err != nil {
		log.Printf("[TokenManager] Failed to load active sessions for user ID=%d: %v", userID, err)
		return nil, NewTokenError(DatabaseError, "failed to load sessions", err)
	}

	tokens := make([]entity.RefreshToken, len(tokensPtr))
	for i, t := range tokensPtr {
		tokens[i] = *t
	}
	return tokens, nil
}

// CleanupExpiredTokens removes stale refresh token records.
func (m *TokenManager) CleanupExpiredTokens() error {
	count, err := m.refreshTokenRepo.CleanupExpiredTokens()
	if err != nil {
		log.Printf("[TokenManager] Failed to clean up expired refresh tokens: %v", err)
		return NewTokenError(DatabaseError, "failed to clean up expired tokens", err)
	}
	log.Printf("[TokenManager] Cleaned up %d expired tokens", count)
	return nil
}

// generateRefreshToken creates a new refresh token value and stores its hash.
func (m *TokenManager) generateRefreshToken(userID uint, deviceID, ipAddress, userAgent string) (string, error) {
	tokenString := uuid.NewString() + uuid.NewString()
	expiresAt := time.Now().Add(m.refreshTokenExpiry)

	token := entity.NewRefreshToken(userID, HashToken(tokenString), deviceID, ipAddress, userAgent, expiresAt)
	if _, err := m.refreshTokenRepo.CreateToken(token); err != nil {
		return "", err
	}
	return tokenString, nil
}

// limitUserSessions expires the oldest sessions above the per-user cap.
func (m *TokenManager) limitUserSessions(userID uint) error {
	count, err := m.refreshTokenRepo.CountTokensForUser(userID)
	if err != nil {
		return fmt.Errorf("failed to count tokens: %w", err)
	}

	if count > m.maxRefreshTokensPerUser {
		log.Printf("[TokenManager] Session limit exceeded for user ID=%d (%d > %d). Expiring oldest.", userID, count, m.maxRefreshTokensPerUser)
		if err := m.refreshTokenRepo.MarkOldestAsExpiredForUser(userID, m.maxRefreshTokensPerUser); err != nil {
			return fmt.Errorf("failed to expire oldest tokens: %w", err)
		}
	}
	return nil
}

// HashToken hashes a raw refresh token value with SHA-256 for storage and lookup.
func HashToken(value string) string {
	hasher := sha256.New()
	hasher.Write([]byte(value))
	return hex.EncodeToString(hasher.Sum(nil))
}
