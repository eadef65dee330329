package repository

import "github.com/yourusername/sling-api/internal/domain/entity"

// CommunityRepository stores communities and memberships. Deep-link
// resolution never fetches a community remotely; it only consults the
// member's already-loaded list (see deeplink.Dispatcher).
type CommunityRepository interface {
	Create(community *entity.Community) error
	GetByID(id uint) (*entity.Community, error)
	GetByPublicID(publicID string) (*entity.Community, error)
	ListForUser(userID uint) ([]entity.Community, error)
	AddMember(member *entity.CommunityMember) error
	IsMember(communityID, userID uint) (bool, error)
}
