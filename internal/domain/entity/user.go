package entity

import (
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultBlitzPoints is the starting balance granted to every new profile.
const DefaultBlitzPoints = 10000

// User represents the canonical, email-keyed user profile.
// It is created exactly once per email on first successful authentication
// and fetched (never recreated) on every authentication after that.
type User struct {
	ID                  uint   `gorm:"primaryKey" json:"id"`
	UID                 string `gorm:"size:64;not null;uniqueIndex" json:"uid"`
	Email               string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password            string `gorm:"size:100;not null;default:''" json:"-"`
	PasswordAuthEnabled bool   `gorm:"not null;default:true" json:"-"`

	// DisplayName never contains whitespace; see service.SanitizeDisplayName.
	DisplayName       string `gorm:"size:50;not null;uniqueIndex" json:"display_name"`
	FirstName         string `gorm:"size:100;not null;default:''" json:"first_name"`
	LastName          string `gorm:"size:100;not null;default:''" json:"last_name"`
	FullName          string `gorm:"size:200;not null;default:''" json:"full_name"`
	ProfilePictureURL string `gorm:"size:255;not null;default:''" json:"profile_picture_url"`
	GenderKnown       string `gorm:"size:20;not null;default:''" json:"gender_known,omitempty"`

	BlitzPoints   int `gorm:"not null;default:10000" json:"blitz_points"`
	TotalBets     int `gorm:"not null;default:0" json:"total_bets"`
	TotalWinnings int `gorm:"not null;default:0" json:"total_winnings"`

	Disabled   bool       `gorm:"not null;default:false" json:"-"`
	DisabledAt *time.Time `gorm:"type:timestamp" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the GORM table name.
func (User) TableName() string {
	return "users"
}

// BeforeSave hashes the password before persisting, unless it is already a bcrypt hash.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) > 0 && !strings.HasPrefix(u.Password, "$2a$") &&
		!strings.HasPrefix(u.Password, "$2b$") && !strings.HasPrefix(u.Password, "$2y$") {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[User.BeforeSave] failed to hash password for email=%s: %v", u.Email, err)
			return err
		}
		u.Password = string(hashedPassword)
	}
	return nil
}

// CheckPassword reports whether the given plaintext password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}
