package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// RefreshTokenRepo implements repository.RefreshTokenRepository using PostgreSQL and GORM.
type RefreshTokenRepo struct {
	db *gorm.DB
}

// NewRefreshTokenRepo creates a new RefreshTokenRepo.
func NewRefreshTokenRepo(gormDB *gorm.DB) (*RefreshTokenRepo, error) {
	if gormDB == nil {
		return nil, fmt.Errorf("GORM DB instance is required for RefreshTokenRepo")
	}
	return &RefreshTokenRepo{db: gormDB}, nil
}

// CreateToken persists a new refresh token record and returns its ID.
func (r *RefreshTokenRepo) CreateToken(token *entity.RefreshToken) (uint, error) {
	result := r.db.Create(token)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to create refresh token: %w", result.Error)
	}
	if token.ID == 0 {
		return 0, fmt.Errorf("missing ID after refresh token create")
	}
	return token.ID, nil
}

// GetTokenByValue finds a refresh token by its stored hash.
func (r *RefreshTokenRepo) GetTokenByValue(tokenHash string) (*entity.RefreshToken, error) {
	var token entity.RefreshToken
	result := r.db.Where("token_hash = ?", tokenHash).First(&token)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token by value: %w", result.Error)
	}

	if token.ExpiresAt.Before(time.Now()) {
		return nil, apperrors.ErrExpiredToken
	}

	return &token, nil
}

// GetTokenByID finds a refresh token by its primary key.
func (r *RefreshTokenRepo) GetTokenByID(tokenID uint) (*entity.RefreshToken, error) {
	var token entity.RefreshToken
	result := r.db.First(&token, tokenID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token by ID: %w", result.Error)
	}
	return &token, nil
}

// GetActiveTokensForUser returns all unexpired refresh tokens for a user, newest first.
func (r *RefreshTokenRepo) GetActiveTokensForUser(userID uint) ([]*entity.RefreshToken, error) {
	var tokens []*entity.RefreshToken
	result := r.db.Where("user_id = ? AND expires_at > ? AND is_expired = false", userID, time.Now()).
		Order("created_at DESC").
		Find(&tokens)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get active tokens for user: %w", result.Error)
	}
	return tokens, nil
}

// MarkTokenAsExpired marks a token as expired by its hash.
func (r *RefreshTokenRepo) MarkTokenAsExpired(tokenHash string) error {
	result := r.db.Model(&entity.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Updates(map[string]interface{}{
			"is_expired": true,
			"expires_at": time.Now().Add(-1 * time.Hour),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark refresh token as expired: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkTokenAsExpiredByID marks a token as expired by its ID.
func (r *RefreshTokenRepo) MarkTokenAsExpiredByID(tokenID uint) error {
	result := r.db.Model(&entity.RefreshToken{}).
		Where("id = ?", tokenID).
		Updates(map[string]interface{}{
			"is_expired": true,
			"expires_at": time.Now().Add(-1 * time.Hour),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark refresh token as expired by ID: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MarkAllAsExpiredForUser expires every token the user holds.
func (r *RefreshTokenRepo) MarkAllAsExpiredForUser(userID uint) error {
	result := r.db.Model(&entity.RefreshToken{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"is_expired": true,
			"expires_at": time.Now().Add(-1 * time.Hour),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to expire all tokens for user: %w", result.Error)
	}
	return nil
}

// CleanupExpiredTokens deletes tokens that expired more than 30 days ago.
func (r *RefreshTokenRepo) CleanupExpiredTokens() (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -30)
	result := r.db.Where("expires_at < ?", cutoff).Delete(&entity.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to cleanup expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountTokensForUser counts active sessions for a user.
func (r *RefreshTokenRepo) CountTokensForUser(userID uint) (int, error) {
	var count int64
	result := r.db.Model(&entity.RefreshToken{}).
		Where("user_id = ? AND expires_at > ? AND is_expired = false", userID, time.Now()).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count tokens for user: %w", result.Error)
	}
	return int(count), nil
}

// MarkOldestAsExpiredForUser expires the oldest sessions beyond the session limit.
func (r *RefreshTokenRepo) MarkOldestAsExpiredForUser(userID uint, limit int) error {
	if limit <= 0 {
		return nil
	}
	subQuery := r.db.Model(&entity.RefreshToken{}).
		Select("id").
		Where("user_id = ? AND expires_at > ? AND is_expired = false", userID, time.Now()).
		Order("created_at ASC").
		Limit(limit)

	result := r.db.Model(&entity.RefreshToken{}).
		Where("id IN (?)", subQuery).
		Updates(map[string]interface{}{
			"is_expired": true,
			"expires_at": time.Now().Add(-1 * time.Hour),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to expire oldest tokens for user: %w", result.Error)
	}
	return nil
}
