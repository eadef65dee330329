package postgres

import (
	"errors"
	"fmt"

	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
	"gorm.io/gorm"
)

type UserIdentityRepo struct {
	db *gorm.DB
}

func NewUserIdentityRepo(db *gorm.DB) *UserIdentityRepo {
	return &UserIdentityRepo{db: db}
}

// Create links a provider subject to a user. Two ceremonies racing to link
// the same subject hit the unique (provider, provider_sub) index; the loser
// gets ErrConflict and tolerates it.
func (r *UserIdentityRepo) Create(identity *entity.UserIdentity) error {
	err := r.db.Create(identity).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrConflict
	}
	return err
}

func (r *UserIdentityRepo) GetByProviderSub(provider, providerSub string) (*entity.UserIdentity, error) {
	var identity entity.UserIdentity
	err := r.db.
		Where("provider = ? AND provider_sub = ?", provider, providerSub).
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity by provider_sub: %w", err)
	}
	return &identity, nil
}

func (r *UserIdentityRepo) GetByUserAndProvider(userID uint, provider string) (*entity.UserIdentity, error) {
	var identity entity.UserIdentity
	err := r.db.
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity by user/provider: %w", err)
	}
	return &identity, nil
}

func (r *UserIdentityRepo) DeleteByUserID(userID uint) error {
	return r.db.Where("user_id = ?", userID).Delete(&entity.UserIdentity{}).Error
}
