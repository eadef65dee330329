package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// BetRepo implements repository.BetRepository.
type BetRepo struct {
	db *gorm.DB
}

// NewBetRepo creates a new bet repository.
func NewBetRepo(db *gorm.DB) *BetRepo {
	return &BetRepo{db: db}
}

func (r *BetRepo) Create(bet *entity.Bet) error {
	return r.db.Create(bet).Error
}

func (r *BetRepo) GetByID(id uint) (*entity.Bet, error) {
	var bet entity.Bet
	err := r.db.First(&bet, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &bet, nil
}

// GetByPublicID returns the bet referenced by a deep link.
func (r *BetRepo) GetByPublicID(ctx context.Context, publicID string) (*entity.Bet, error) {
	var bet entity.Bet
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&bet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bet by public id: %w", err)
	}
	return &bet, nil
}

func (r *BetRepo) ListByCommunity(communityID uint, limit, offset int) ([]entity.Bet, error) {
	var bets []entity.Bet
	err := r.db.
		Where("community_id = ?", communityID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	return bets, err
}
