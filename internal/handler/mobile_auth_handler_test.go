package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
	"github.com/yourusername/sling-api/internal/service"
	"github.com/yourusername/sling-api/pkg/auth/manager"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestGinContext creates a *gin.Context with an optional JSON body.
func newTestGinContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}

// ============================================================================
// Request validation tests. The handler rejects with 400 before touching
// any service, so a zero-value handler is enough.
// ============================================================================

func TestEmailSignIn_ValidationErrors(t *testing.T) {
	handler := &MobileAuthHandler{}

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty body", nil},
		{"missing email", map[string]string{"password": "secret123", "device_id": "dev-1"}},
		{"missing password", map[string]string{"email": "user@test.com", "device_id": "dev-1"}},
		{"missing device_id", map[string]string{"email": "user@test.com", "password": "secret123"}},
		{"invalid email", map[string]string{"email": "nope", "password": "secret123", "device_id": "dev-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext(http.MethodPost, "/api/mobile/auth/email/signin", tt.body)
			handler.EmailSignIn(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := parseJSONResponse(t, w)
			assert.Equal(t, "invalid_request", resp["error_type"])
		})
	}
}

func TestEmailSignUp_ValidationErrors(t *testing.T) {
	handler := &MobileAuthHandler{}

	valid := map[string]string{
		"email":        "user@test.com",
		"password":     "secret123",
		"first_name":   "Jane",
		"last_name":    "Doe",
		"display_name": "JaneDoe",
		"device_id":    "dev-1",
	}

	drop := func(key string) map[string]string {
		out := make(map[string]string, len(valid))
		for k, v := range valid {
			if k != key {
				out[k] = v
			}
		}
		return out
	}

	for _, key := range []string{"email", "password", "first_name", "last_name", "display_name", "device_id"} {
		t.Run("missing "+key, func(t *testing.T) {
			c, w := newTestGinContext(http.MethodPost, "/api/mobile/auth/email/signup", drop(key))
			handler.EmailSignUp(c)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	t.Run("short password", func(t *testing.T) {
		body := drop("password")
		body["password"] = "12345"
		c, w := newTestGinContext(http.MethodPost, "/api/mobile/auth/email/signup", body)
		handler.EmailSignUp(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAppleSignIn_ValidationErrors(t *testing.T) {
	handler := &MobileAuthHandler{}

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty body", nil},
		{"missing attempt_id", map[string]string{"identity_token": "tok", "device_id": "dev-1"}},
		{"missing device_id", map[string]string{"attempt_id": "a-1", "identity_token": "tok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext(http.MethodPost, "/api/mobile/auth/apple", tt.body)
			handler.AppleSignIn(c)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestRefresh_ValidationErrors(t *testing.T) {
	handler := &MobileAuthHandler{}

	c, w := newTestGinContext(http.MethodPost, "/api/mobile/auth/refresh", map[string]string{"device_id": "dev-1"})
	handler.Refresh(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckDisplayName_RequiresName(t *testing.T) {
	handler := &MobileAuthHandler{}

	c, w := newTestGinContext(http.MethodGet, "/api/mobile/auth/display-name/check", nil)
	handler.CheckDisplayName(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Error mapping
// ============================================================================

func TestHandleAuthError_Mapping(t *testing.T) {
	handler := &MobileAuthHandler{}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"cancellation is silent", service.ErrUserCancelled, http.StatusNoContent, ""},
		{"attempt in progress", service.ErrAttemptInProgress, http.StatusConflict, "attempt_in_progress"},
		{"account conflict", service.ErrAccountConflict, http.StatusConflict, "account_conflict"},
		{"account disabled", service.ErrAccountDisabled, http.StatusForbidden, "account_disabled"},
		{"operation not allowed", service.ErrOperationNotAllowed, http.StatusForbidden, "operation_not_allowed"},
		{"profile not found hides existence", service.ErrProfileNotFound, http.StatusUnauthorized, "invalid_credentials"},
		{"invalid credential", service.ErrInvalidCredential, http.StatusUnauthorized, "invalid_credentials"},
		{"device unsupported", service.ErrDeviceUnsupported, http.StatusBadRequest, "device_unsupported"},
		{"provider configuration", service.ErrProviderConfiguration, http.StatusInternalServerError, "provider_configuration"},
		{"network", service.ErrNetwork, http.StatusBadGateway, "network_error"},
		{"rate limited", apperrors.ErrTooManyRequests, http.StatusTooManyRequests, "rate_limited"},
		{"expired refresh token", manager.NewTokenError(manager.ExpiredRefreshToken, "expired", nil), http.StatusUnauthorized, "token_expired"},
		{"invalid refresh token", manager.NewTokenError(manager.InvalidRefreshToken, "invalid", nil), http.StatusUnauthorized, "token_invalid"},
		{"inactive user", manager.NewTokenError(manager.InactiveUser, "disabled", nil), http.StatusForbidden, "account_disabled"},
		{"token generation failed", manager.NewTokenError(manager.TokenGenerationFailed, "failed", nil), http.StatusInternalServerError, "token_generation_failed"},
		{"validation", apperrors.ErrValidation, http.StatusBadRequest, "validation_error"},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext(http.MethodPost, "/test", nil)
			handler.handleAuthError(c, tt.err)
			// Body-less responses set the status lazily; flush the way the
			// request loop does before reading the recorder.
			c.Writer.WriteHeaderNow()

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Empty(t, w.Body.String(), "cancellation produces no body")
				return
			}
			resp := parseJSONResponse(t, w)
			assert.Equal(t, tt.wantType, resp["error_type"])
		})
	}
}
