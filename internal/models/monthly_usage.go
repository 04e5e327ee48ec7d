package models

import "time"

// MonthlyUsage accumulates per-tenant request counters for one calendar month.
//
// Rows are created lazily on first request of a month and are never deleted
// or decremented; SuccessCount never exceeds RequestCount.
type MonthlyUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID    uint64 `gorm:"not null;uniqueIndex:idx_monthly_usages_user_month"`                // Owning user ID.
	YearMonth string `gorm:"type:char(7);not null;uniqueIndex:idx_monthly_usages_user_month"` // Month key, YYYY-MM in UTC.

	RequestCount int64 `gorm:"not null;default:0"` // Requests issued this month.
	SuccessCount int64 `gorm:"not null;default:0"` // Requests that succeeded upstream.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
