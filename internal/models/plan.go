package models

import (
	"time"

	"gorm.io/datatypes"
)

// UnlimitedSentinel marks a plan limit with no cap.
const UnlimitedSentinel = -1

// Plan represents a subscription tier configuration.
//
// Plans are keyed by tier name, never per-tenant; a user references a plan
// through the Plan field on User.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Tier        string  `gorm:"type:varchar(32);not null;uniqueIndex"` // Tier key (free, starter, pro, enterprise).
	DisplayName string  `gorm:"type:varchar(255);not null"`            // Human-readable plan name.
	Description string  `gorm:"type:text"`                             // Plan description.
	MonthPrice  float64 `gorm:"type:decimal(10,2);not null;default:0"` // Monthly price.

	MonthlyRequestLimit int `gorm:"not null;default:100"` // Monthly request cap, -1 for unlimited.
	MaxConnections      int `gorm:"not null;default:1"`   // Connection cap, -1 for unlimited.

	Features datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Display feature list.

	SortOrder int  `gorm:"not null;default:0"`     // Display ordering weight.
	IsEnabled bool `gorm:"not null;default:true"`  // Whether the plan is offered.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Unlimited reports whether the monthly request limit is uncapped.
func (p *Plan) Unlimited() bool {
	return p != nil && p.MonthlyRequestLimit == UnlimitedSentinel
}
