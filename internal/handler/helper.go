package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/sling-api/internal/domain/entity"
)

// serializeUserForClient shapes a user for mobile responses. Password and
// internal flags never leave the server.
func serializeUserForClient(user *entity.User) gin.H {
	if user == nil {
		return nil
	}
	return gin.H{
		"id":                user.ID,
		"uid":               user.UID,
		"email":             user.Email,
		"firstName":         user.FirstName,
		"lastName":          user.LastName,
		"fullName":          user.FullName,
		"displayName":       user.DisplayName,
		"profilePictureUrl": user.ProfilePictureURL,
		"blitzPoints":       user.BlitzPoints,
		"totalBets":         user.TotalBets,
		"totalWinnings":     user.TotalWinnings,
		"createdAt":         user.CreatedAt,
	}
}
