package repository

import "github.com/yourusername/sling-api/internal/domain/entity"

// RefreshTokenRepository stores refresh token session records.
type RefreshTokenRepository interface {
	CreateToken(token *entity.RefreshToken) (uint, error)
	GetTokenByValue(tokenHash string) (*entity.RefreshToken, error)
	GetTokenByID(id uint) (*entity.RefreshToken, error)
	MarkTokenAsExpired(tokenHash string) error
	MarkTokenAsExpiredByID(id uint) error
	MarkAllAsExpiredForUser(userID uint) error
	CleanupExpiredTokens() (int64, error)
	GetActiveTokensForUser(userID uint) ([]*entity.RefreshToken, error)
	CountTokensForUser(userID uint) (int, error)
	MarkOldestAsExpiredForUser(userID uint, limit int) error
}
