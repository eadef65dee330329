package entity

import "time"

// Identity provider names as stored in user_identities.provider.
const (
	ProviderApple  = "apple"
	ProviderGoogle = "google"
	ProviderEmail  = "email"
)

// UserIdentity links a local user to an external credential provider.
// One row per (provider, subject) pair.
type UserIdentity struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	Provider      string    `gorm:"size:20;not null;uniqueIndex:idx_provider_sub,priority:1" json:"provider"`
	ProviderSub   string    `gorm:"size:255;not null;uniqueIndex:idx_provider_sub,priority:2" json:"provider_sub"`
	ProviderEmail string    `gorm:"size:100" json:"provider_email,omitempty"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (UserIdentity) TableName() string {
	return "user_identities"
}
