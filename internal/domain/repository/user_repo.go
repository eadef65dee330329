package repository

import (
	"github.com/yourusername/sling-api/internal/domain/entity"
)

// UserRepository is the canonical profile store. Profiles are keyed by email;
// GetByEmail/Create back the resolver's create-or-fetch sequence.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByUID(uid string) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByDisplayName(displayName string) (*entity.User, error)
	Update(user *entity.User) error
	UpdateProfile(userID uint, updates map[string]interface{}) error
	UpdatePassword(userID uint, newPassword string) error
	List(limit, offset int) ([]entity.User, error)
}
