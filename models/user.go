package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account that owns companies, customers and sequences
type User struct {
	gorm.Model
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Account state
	IsActive      bool   `gorm:"default:true" json:"is_active"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`
	TokenVersion  int    `gorm:"default:0" json:"-"`
	GoogleID      string `gorm:"index" json:"-"` // set when the account signed up via OAuth

	// Relations
	Companies []Company `gorm:"foreignKey:UserID" json:"companies,omitempty"`
}

// RefreshToken stores issued refresh tokens so they can be revoked
type RefreshToken struct {
	gorm.Model
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at"`

	User User `json:"-"`
}
