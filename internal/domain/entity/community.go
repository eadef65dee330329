package entity

import "time"

// Community is a group of users who share a bet feed. Deep links reference
// communities by PublicID; the app only shows a community the user belongs to.
type Community struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PublicID    string    `gorm:"size:64;not null;uniqueIndex" json:"public_id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:500;not null;default:''" json:"description"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	MemberCount int       `gorm:"not null;default:0" json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Community) TableName() string {
	return "communities"
}

// CommunityMember is a membership row; membership gates deep-link display.
type CommunityMember struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CommunityID uint      `gorm:"not null;uniqueIndex:idx_member,priority:1" json:"community_id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_member,priority:2" json:"user_id"`
	Role        string    `gorm:"size:20;not null;default:'member'" json:"role"`
	JoinedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

func (CommunityMember) TableName() string {
	return "community_members"
}
