package models

import "time"

// Connection status values.
const (
	ConnectionStatusActive   = "active"
	ConnectionStatusInactive = "inactive"
)

// Connection represents a tenant's registered Gemini account.
//
// The upstream API key is stored encrypted; only the authenticator decrypts
// it, and only for the lifetime of a single request.
type Connection struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`             // Owning user ID.
	Name   string `gorm:"type:varchar(255);not null"` // Display name.

	GeminiAPIKeyEncrypted string `gorm:"type:text;not null"` // AES-GCM blob: nonce plus ciphertext, base64.
	DefaultCorpusID       string `gorm:"type:text"`          // Optional default file search store.

	Status string `gorm:"type:varchar(16);not null;default:'active'"` // active or inactive.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsActive reports whether the connection may serve requests.
func (c *Connection) IsActive() bool {
	return c != nil && c.Status == ConnectionStatusActive
}
