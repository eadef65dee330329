package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/sling-api/internal/deeplink"
)

func newTestDeepLinkHandler(t *testing.T) *DeepLinkHandler {
	t.Helper()
	router, err := deeplink.NewRouter("sling", "sling.app")
	require.NoError(t, err)
	return &DeepLinkHandler{router: router, channel: deeplink.NewChannel()}
}

func TestResolve_RequiresAuth(t *testing.T) {
	handler := newTestDeepLinkHandler(t)

	c, w := newTestGinContext(http.MethodPost, "/api/mobile/links/resolve", map[string]string{"uri": "sling://bet/abc"})
	handler.Resolve(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResolve_RequiresURI(t *testing.T) {
	handler := newTestDeepLinkHandler(t)

	c, w := newTestGinContext(http.MethodPost, "/api/mobile/links/resolve", map[string]string{})
	c.Set("user_id", uint(1))
	handler.Resolve(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", parseJSONResponse(t, w)["error_type"])
}

func TestResolve_ParseErrorMapping(t *testing.T) {
	handler := newTestDeepLinkHandler(t)

	tests := []struct {
		name     string
		uri      string
		wantType string
	}{
		{"malformed", "sling://bet", "malformed_link"},
		{"wrong host", "https://other.example/bet/abc", "malformed_link"},
		{"unknown type", "sling://wager/abc", "unknown_link_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestGinContext(http.MethodPost, "/api/mobile/links/resolve", map[string]string{"uri": tt.uri})
			c.Set("user_id", uint(1))
			handler.Resolve(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantType, parseJSONResponse(t, w)["error_type"])
		})
	}
}
