package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/sling-api/internal/domain/entity"
	"github.com/yourusername/sling-api/internal/notify"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
	"github.com/yourusername/sling-api/internal/service"
	"github.com/yourusername/sling-api/pkg/auth/manager"
)

// MobileAuthHandler serves authentication for mobile clients. Tokens travel
// in JSON only: no cookies and no CSRF, since those are browser concerns.
type MobileAuthHandler struct {
	orchestrator *service.AuthOrchestrator
	appleSvc     *service.AppleCredentialService
	resolver     *service.ProfileResolver
	tokenManager *manager.TokenManager
	hub          *notify.Hub
}

// NewMobileAuthHandler creates the mobile auth handler.
func NewMobileAuthHandler(
	orchestrator *service.AuthOrchestrator,
	appleSvc *service.AppleCredentialService,
	resolver *service.ProfileResolver,
	tokenManager *manager.TokenManager,
	hub *notify.Hub,
) *MobileAuthHandler {
	return &MobileAuthHandler{
		orchestrator: orchestrator,
		appleSvc:     appleSvc,
		resolver:     resolver,
		tokenManager: tokenManager,
		hub:          hub,
	}
}

// --- Request/response DTOs ---

// MobileAuthResponse is the sign-in/sign-up response.
type MobileAuthResponse struct {
	User         interface{} `json:"user"`
	IsNewUser    bool        `json:"isNewUser"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	UserID       uint        `json:"userId"`
	ExpiresIn    int         `json:"expiresIn"`
	TokenType    string      `json:"tokenType"`
}

// AppleBeginRequest opens an Apple sign-in attempt.
type AppleBeginRequest struct {
	AttemptID string `json:"attempt_id" binding:"required"`
}

// AppleSignInRequest completes an Apple ceremony. Either identity_token or
// error_code is set, never both.
type AppleSignInRequest struct {
	AttemptID     string `json:"attempt_id" binding:"required"`
	IdentityToken string `json:"identity_token"`
	ErrorCode     string `json:"error_code"`
	FullName      string `json:"full_name"`
	DisplayName   string `json:"display_name"`
	DeviceID      string `json:"device_id" binding:"required"`
}

// GoogleSignInRequest completes a Google ceremony.
type GoogleSignInRequest struct {
	IdentityToken string `json:"identity_token"`
	ErrorCode     string `json:"error_code"`
	DisplayName   string `json:"display_name"`
	DeviceID      string `json:"device_id" binding:"required"`
}

// EmailSignInRequest is password sign-in.
type EmailSignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// EmailSignUpRequest is the wizard's final submit.
type EmailSignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6,max=72"`
	FirstName   string `json:"first_name" binding:"required,min=1,max=100"`
	LastName    string `json:"last_name" binding:"required,min=1,max=100"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=50"`
	DeviceID    string `json:"device_id" binding:"required"`
}

// MobileRefreshRequest rotates a refresh token.
type MobileRefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
	DeviceID     string `json:"device_id" binding:"required"`
}

// MobileLogoutRequest ends one session.
type MobileLogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// --- Handlers ---

// AppleBegin issues the hashed nonce the client passes into the Apple
// ceremony. POST /api/mobile/auth/apple/begin
func (h *MobileAuthHandler) AppleBegin(c *gin.Context) {
	var req AppleBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	hashedNonce, err := h.appleSvc.BeginAttempt(c.Request.Context(), req.AttemptID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": hashedNonce})
}

// AppleSignIn completes the Apple ceremony. POST /api/mobile/auth/apple
func (h *MobileAuthHandler) AppleSignIn(c *gin.Context) {
	var req AppleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	result, err := h.orchestrator.SignIn(c.Request.Context(), service.SignInInput{
		Provider: entity.ProviderApple,
		Credential: service.Credential{
			AttemptID: req.AttemptID,
			IDToken:   req.IdentityToken,
			ErrorCode: req.ErrorCode,
			FullName:  req.FullName,
		},
		Options:   service.ResolveOptions{ExplicitDisplayName: req.DisplayName},
		DeviceID:  req.DeviceID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.respondAuth(c, result)
}

// GoogleSignIn completes the Google ceremony. POST /api/mobile/auth/google
func (h *MobileAuthHandler) GoogleSignIn(c *gin.Context) {
	var req GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	result, err := h.orchestrator.SignIn(c.Request.Context(), service.SignInInput{
		Provider: entity.ProviderGoogle,
		Credential: service.Credential{
			IDToken:   req.IdentityToken,
			ErrorCode: req.ErrorCode,
		},
		Options:   service.ResolveOptions{ExplicitDisplayName: req.DisplayName},
		DeviceID:  req.DeviceID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.respondAuth(c, result)
}

// EmailSignIn handles password sign-in. POST /api/mobile/auth/email/signin
func (h *MobileAuthHandler) EmailSignIn(c *gin.Context) {
	var req EmailSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	result, err := h.orchestrator.SignIn(c.Request.Context(), service.SignInInput{
		Provider: entity.ProviderEmail,
		Credential: service.Credential{
			Email:    req.Email,
			Password: req.Password,
		},
		DeviceID:  req.DeviceID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.respondAuth(c, result)
}

// EmailSignUp handles the wizard's final submit. POST /api/mobile/auth/email/signup
func (h *MobileAuthHandler) EmailSignUp(c *gin.Context) {
	var req EmailSignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request", "details": err.Error()})
		return
	}

	result, err := h.orchestrator.SignUp(c.Request.Context(), service.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
		DeviceID:    req.DeviceID,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.respondAuth(c, result)
}

// CheckDisplayName reports display-name availability as the user types.
// GET /api/mobile/auth/display-name/check?name=...
func (h *MobileAuthHandler) CheckDisplayName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required", "error_type": "invalid_request"})
		return
	}

	taken, err := h.resolver.CheckDisplayNameTaken(c.Request.Context(), name)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":      service.SanitizeDisplayName(name),
		"available": !taken,
	})
}

// Refresh rotates the token pair. POST /api/mobile/auth/refresh
func (h *MobileAuthHandler) Refresh(c *gin.Context) {
	var req MobileRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	tokenResp, err := h.tokenManager.RefreshTokens(req.RefreshToken, req.DeviceID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  tokenResp.AccessToken,
		"refreshToken": tokenResp.RefreshToken,
		"userId":       tokenResp.UserID,
		"expiresIn":    tokenResp.ExpiresIn,
		"tokenType":    tokenResp.TokenType,
	})
}

// Logout revokes one session. POST /api/mobile/auth/logout
func (h *MobileAuthHandler) Logout(c *gin.Context) {
	var req MobileLogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	if err := h.tokenManager.RevokeRefreshToken(req.RefreshToken); err != nil {
		// Logout is idempotent from the client's point of view.
		log.Printf("[MobileAuth] Logout revoke failed: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// LogoutAllDevices revokes every session the user holds.
// POST /api/mobile/auth/logout-all (authenticated)
func (h *MobileAuthHandler) LogoutAllDevices(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	if err := h.tokenManager.RevokeAllUserTokens(userID.(uint)); err != nil {
		log.Printf("[MobileAuth] Failed to logout all devices for user %d: %v", userID.(uint), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout from all devices", "error_type": "internal_error"})
		return
	}

	if h.hub != nil {
		h.hub.NotifySessionRevoked(userID.(uint))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out from all devices"})
}

// Sessions lists the user's active sessions. GET /api/mobile/auth/sessions
func (h *MobileAuthHandler) Sessions(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	sessions, err := h.tokenManager.GetUserActiveSessions(userID.(uint))
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	result := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, session.SessionInfo())
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": result,
		"count":    len(result),
	})
}

func (h *MobileAuthHandler) respondAuth(c *gin.Context, result *service.AuthResult) {
	if result.Token == nil || result.Token.RefreshToken == "" {
		log.Printf("[MobileAuth] Missing token pair after sign-in for user ID=%d", result.User.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication tokens", "error_type": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, MobileAuthResponse{
		User:         serializeUserForClient(result.User),
		IsNewUser:    result.IsNewUser,
		AccessToken:  result.Token.AccessToken,
		RefreshToken: result.Token.RefreshToken,
		UserID:       result.User.ID,
		ExpiresIn:    result.Token.ExpiresIn,
		TokenType:    result.Token.TokenType,
	})
}

// --- Error handling ---

// handleAuthError maps the common error taxonomy to HTTP. Cancellation is
// a silent no-op: 204, no body, no message.
func (h *MobileAuthHandler) handleAuthError(c *gin.Context, err error) {
	var tokenErr *manager.TokenError
	log.Printf("[MobileAuth] Auth Error: %v", err)

	switch {
	case errors.Is(err, service.ErrUserCancelled):
		c.Status(http.StatusNoContent)
	case errors.Is(err, service.ErrAttemptInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A sign-in attempt is already in progress", "error_type": "attempt_in_progress"})
	case errors.Is(err, service.ErrAccountConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Account exists with a different sign-in method", "error_type": "account_conflict"})
	case errors.Is(err, service.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled", "error_type": "account_disabled"})
	case errors.Is(err, service.ErrOperationNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "Sign-in method not allowed for this account", "error_type": "operation_not_allowed"})
	case errors.Is(err, service.ErrProfileNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_type": "invalid_credentials"})
	case errors.Is(err, service.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_type": "invalid_credentials"})
	case errors.Is(err, service.ErrDeviceUnsupported):
		c.JSON(http.StatusBadRequest, gin.H{"error": "This device cannot perform the requested sign-in", "error_type": "device_unsupported"})
	case errors.Is(err, service.ErrProviderConfiguration):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in provider is misconfigured", "error_type": "provider_configuration"})
	case errors.Is(err, service.ErrNetwork):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream service unavailable", "error_type": "network_error"})
	case errors.Is(err, apperrors.ErrTooManyRequests):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests", "error_type": "rate_limited"})
	case errors.As(err, &tokenErr):
		switch tokenErr.Type {
		case manager.ExpiredRefreshToken:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired", "error_type": "token_expired"})
		case manager.InvalidRefreshToken:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token", "error_type": "token_invalid"})
		case manager.UserNotFound:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_type": "invalid_credentials"})
		case manager.InactiveUser:
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled", "error_type": "account_disabled"})
		case manager.TokenGenerationFailed:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Token generation failed", "error_type": "token_generation_failed"})
		case manager.TooManySessions:
			c.JSON(http.StatusConflict, gin.H{"error": "Too many active sessions", "error_type": "too_many_sessions"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication error", "error_type": string(tokenErr.Type)})
		}
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials", "error_type": "unauthorized"})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied", "error_type": "forbidden"})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Data conflict", "error_type": "conflict"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation error", "error_type": "validation_error", "details": err.Error()})
	case errors.Is(err, apperrors.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired", "error_type": "token_expired"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
	}
}
