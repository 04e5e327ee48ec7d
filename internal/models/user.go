package models

import "time"

// User status values.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDeleted   = "deleted"
)

// User represents a tenant account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email        string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	PasswordHash string `gorm:"type:text;not null"`             // Salted password hash.

	Plan    string `gorm:"type:varchar(32);not null;default:'free';index"` // Active plan tier.
	Status  string `gorm:"type:varchar(16);not null;default:'active'"`     // active, suspended or deleted.
	IsAdmin bool   `gorm:"not null;default:false"`                         // Administrative privileges flag.

	Connections []Connection `gorm:"foreignKey:UserID"` // Registered upstream connections.
	APIKeys     []APIKey     `gorm:"foreignKey:UserID"` // Issued API keys.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
