package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gragdev/grag-gateway/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Migrate applies the schema, indexes, and default plan rows.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Plan{},
		&models.User{},
		&models.Connection{},
		&models.APIKey{},
		&models.MonthlyUsage{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// ddl defines an index statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_api_keys_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_api_keys_user_id_created_at
				ON api_keys (user_id, created_at DESC)
			`,
		},
		{
			name: "idx_api_keys_user_id_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_api_keys_user_id_active
				ON api_keys (user_id)
				WHERE status = 'active'
			`,
		},
		{
			name: "idx_connections_user_id_created_at",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_connections_user_id_created_at
				ON connections (user_id, created_at DESC)
			`,
		},
		{
			name: "idx_plans_is_enabled_sort_order",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_plans_is_enabled_sort_order
				ON plans (is_enabled, sort_order ASC)
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	if errSeed := ensureDefaultPlans(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// defaultPlan describes one seeded subscription tier.
type defaultPlan struct {
	tier        string
	displayName string
	price       float64
	limit       int
	connections int
	sortOrder   int
	features    []string
}

var defaultPlans = []defaultPlan{
	{"free", "Free", 0, 100, 1, 0, []string{"100 requests / month", "1 connection"}},
	{"starter", "Starter", 9, 1000, 2, 1, []string{"1,000 requests / month", "2 connections"}},
	{"pro", "Pro", 29, 10000, 5, 2, []string{"10,000 requests / month", "5 connections"}},
	{"enterprise", "Enterprise", 99, models.UnlimitedSentinel, models.UnlimitedSentinel, 3, []string{"Unlimited requests", "Unlimited connections"}},
}

// ensureDefaultPlans seeds the built-in tiers without touching rows an
// operator has already customized.
func ensureDefaultPlans(conn *gorm.DB) error {
	for _, seed := range defaultPlans {
		var existing models.Plan
		errFind := conn.Where("tier = ?", seed.tier).First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: query plan %s: %w", seed.tier, errFind)
		}

		features, errMarshal := json.Marshal(seed.features)
		if errMarshal != nil {
			return fmt.Errorf("db: marshal plan features: %w", errMarshal)
		}
		now := time.Now().UTC()
		plan := models.Plan{
			Tier:                seed.tier,
			DisplayName:         seed.displayName,
			MonthPrice:          seed.price,
			MonthlyRequestLimit: seed.limit,
			MaxConnections:      seed.connections,
			Features:            datatypes.JSON(features),
			SortOrder:           seed.sortOrder,
			IsEnabled:           true,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if errCreate := conn.Create(&plan).Error; errCreate != nil {
			return fmt.Errorf("db: create plan %s: %w", seed.tier, errCreate)
		}
	}
	return nil
}
