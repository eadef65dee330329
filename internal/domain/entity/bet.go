package entity

import "time"

// Bet statuses.
const (
	BetStatusOpen    = "open"
	BetStatusLocked  = "locked"
	BetStatusSettled = "settled"
)

// Bet is a prediction users can take sides on. Bets are shared via deep
// links, so each bet carries a stable PublicID used in link paths.
type Bet struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	PublicID    string     `gorm:"size:64;not null;uniqueIndex" json:"public_id"`
	CommunityID uint       `gorm:"not null;index" json:"community_id"`
	CreatorID   uint       `gorm:"not null;index" json:"creator_id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"size:1000;not null;default:''" json:"description"`
	Status      string     `gorm:"size:20;not null;default:'open';index" json:"status"`
	Stake       int        `gorm:"not null;default:0" json:"stake"`
	ClosesAt    *time.Time `gorm:"type:timestamp" json:"closes_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Bet) TableName() string {
	return "bets"
}

// IsOpen reports whether the bet still accepts new positions.
func (b *Bet) IsOpen() bool {
	return b.Status == BetStatusOpen
}
