package postgres

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/sling-api/internal/domain/entity"
	apperrors "github.com/yourusername/sling-api/internal/pkg/errors"
)

// CommunityRepo implements repository.CommunityRepository.
type CommunityRepo struct {
	db *gorm.DB
}

// NewCommunityRepo creates a new community repository.
func NewCommunityRepo(db *gorm.DB) *CommunityRepo {
	return &CommunityRepo{db: db}
}

func (r *CommunityRepo) Create(community *entity.Community) error {
	return r.db.Create(community).Error
}

func (r *CommunityRepo) GetByID(id uint) (*entity.Community, error) {
	var community entity.Community
	err := r.db.First(&community, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &community, nil
}

func (r *CommunityRepo) GetByPublicID(publicID string) (*entity.Community, error) {
	var community entity.Community
	err := r.db.Where("public_id = ?", publicID).First(&community).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &community, nil
}

// ListForUser returns the communities the user is a member of. This list is
// what the deep-link dispatcher treats as "already-loaded" app data.
func (r *CommunityRepo) ListForUser(userID uint) ([]entity.Community, error) {
	var communities []entity.Community
	err := r.db.
		Joins("JOIN community_members ON community_members.community_id = communities.id").
		Where("community_members.user_id = ?", userID).
		Order("communities.name").
		Find(&communities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list communities for user: %w", err)
	}
	return communities, nil
}

func (r *CommunityRepo) AddMember(member *entity.CommunityMember) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(member).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Community{}).
			Where("id = ?", member.CommunityID).
			UpdateColumn("member_count", gorm.Expr("member_count + ?", 1)).
			Error
	})
}

func (r *CommunityRepo) IsMember(communityID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&entity.CommunityMember{}).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
