package models

import "time"

// APIKey status values. A revoked key never becomes active again.
const (
	APIKeyStatusActive  = "active"
	APIKeyStatusRevoked = "revoked"
)

// APIKey represents one issued bearer credential.
//
// The plaintext key is never stored; KeyHash indexes lookups and KeyPrefix
// is the only displayable remnant of the secret.
type APIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID       uint64 `gorm:"not null;index"` // Owning user ID.
	ConnectionID uint64 `gorm:"not null;index"` // Backing connection ID.

	KeyHash   string `gorm:"type:char(64);not null;uniqueIndex"` // SHA-256 hex digest of the key.
	KeyPrefix string `gorm:"type:varchar(16);not null"`          // First characters of the key, safe to display.
	Name      string `gorm:"type:varchar(255);not null"`         // Display name.

	Status     string     `gorm:"type:varchar(16);not null;default:'active'"` // active or revoked.
	LastUsedAt *time.Time `gorm:"type:timestamptz"`                           // Last successful authentication.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsActive reports whether the key may authenticate.
func (k *APIKey) IsActive() bool {
	return k != nil && k.Status == APIKeyStatusActive
}
