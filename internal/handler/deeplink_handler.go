package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/sling-api/internal/deeplink"
	"github.com/yourusername/sling-api/internal/domain/repository"
)

// DeepLinkHandler resolves share links for mobile clients. The client posts
// the raw URI it was launched with; the server parses it, queues it, and
// resolves it against the caller's data in one round trip.
type DeepLinkHandler struct {
	router        *deeplink.Router
	channel       *deeplink.Channel
	dispatcher    *deeplink.Dispatcher
	communityRepo repository.CommunityRepository
}

// NewDeepLinkHandler creates the deep link handler.
func NewDeepLinkHandler(
	router *deeplink.Router,
	channel *deeplink.Channel,
	dispatcher *deeplink.Dispatcher,
	communityRepo repository.CommunityRepository,
) *DeepLinkHandler {
	return &DeepLinkHandler{
		router:        router,
		channel:       channel,
		dispatcher:    dispatcher,
		communityRepo: communityRepo,
	}
}

// ResolveLinkRequest carries the raw URI the app was opened with.
type ResolveLinkRequest struct {
	URI string `json:"uri" binding:"required"`
}

// Resolve parses and resolves a deep link in one call.
// POST /api/mobile/links/resolve (authenticated)
func (h *DeepLinkHandler) Resolve(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "token_missing"})
		return
	}

	var req ResolveLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "invalid_request"})
		return
	}

	link, err := h.router.Parse(req.URI)
	if err != nil {
		switch {
		case errors.Is(err, deeplink.ErrUnknownLinkType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown link type", "error_type": "unknown_link_type"})
		case errors.Is(err, deeplink.ErrMalformedLink):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed link", "error_type": "malformed_link"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed link", "error_type": "malformed_link"})
		}
		return
	}

	h.channel.Publish(link)

	// Community links only resolve against the member's loaded list.
	communities, err := h.communityRepo.ListForUser(userID.(uint))
	if err != nil {
		log.Printf("[DeepLink] Failed to list communities for user %d: %v", userID.(uint), err)
		communities = nil
	}

	outcome, err := h.dispatcher.Dispatch(c.Request.Context(), communities)
	if err != nil {
		// The dispatch already consumed the link; the error shaped the
		// outcome, it does not fail the request.
		log.Printf("[DeepLink] Dispatch error for user %d: %v", userID.(uint), err)
	}
	if outcome == nil {
		c.JSON(http.StatusOK, gin.H{"kind": deeplink.OutcomeNotFound})
		return
	}

	resp := gin.H{
		"kind":        outcome.Kind,
		"entity_type": outcome.EntityType,
		"entity_id":   outcome.EntityID,
	}
	switch outcome.Kind {
	case deeplink.OutcomeShowBet:
		resp["bet"] = outcome.Bet
	case deeplink.OutcomeShowCommunity:
		resp["community"] = outcome.Community
	}
	c.JSON(http.StatusOK, resp)
}
