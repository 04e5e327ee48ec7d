// Package store implements the credential store contracts over GORM.
//
// Lookup methods follow a null-object contract: a missing row returns
// (nil, nil) so callers can distinguish "not found" from infrastructure
// failure without matching on gorm errors.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gragdev/grag-gateway/internal/models"

	"gorm.io/gorm"
)

// GormStore persists tenants, connections, API keys and plans.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// DB exposes the underlying connection for collaborators that share it.
func (s *GormStore) DB() *gorm.DB { return s.db }

// FindAPIKeyByHash looks up an API key record by its SHA-256 digest.
func (s *GormStore) FindAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	if errFind := s.db.WithContext(ctx).Where("key_hash = ?", hash).First(&key).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: find api key: %w", errFind)
	}
	return &key, nil
}

// FindUserByID loads a user by primary key.
func (s *GormStore) FindUserByID(ctx context.Context, id uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: find user: %w", errFind)
	}
	return &user, nil
}

// FindUserByEmail loads a user by unique email.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: find user by email: %w", errFind)
	}
	return &user, nil
}

// CreateUser inserts a new tenant account.
func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if errCreate := s.db.WithContext(ctx).Create(user).Error; errCreate != nil {
		return fmt.Errorf("store: create user: %w", errCreate)
	}
	return nil
}

// UpdateUserPassword replaces a user's stored password hash.
func (s *GormStore) UpdateUserPassword(ctx context.Context, userID uint64, passwordHash string) error {
	return s.updateUserColumn(ctx, userID, "password_hash", passwordHash)
}

// UpdateUserPlan moves a user to another plan tier. Callers validate the
// tier against the plans table first.
func (s *GormStore) UpdateUserPlan(ctx context.Context, userID uint64, tier string) error {
	return s.updateUserColumn(ctx, userID, "plan", tier)
}

// UpdateUserStatus flips a user between active and suspended.
func (s *GormStore) UpdateUserStatus(ctx context.Context, userID uint64, status string) error {
	return s.updateUserColumn(ctx, userID, "status", status)
}

func (s *GormStore) updateUserColumn(ctx context.Context, userID uint64, column string, value any) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			column:       value,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("store: update user %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UserFilter narrows and pages an admin user listing.
type UserFilter struct {
	Limit  int
	Offset int
	Plan   string
	Status string
	Search string
}

// ListUsers returns a filtered page of users, newest first, and the total
// count matching the filter.
func (s *GormStore) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})
	if filter.Plan != "" {
		query = query.Where("plan = ?", filter.Plan)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("email LIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("store: count users: %w", errCount)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var users []models.User
	if errFind := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&users).Error; errFind != nil {
		return nil, 0, fmt.Errorf("store: list users: %w", errFind)
	}
	return users, total, nil
}

// Stats aggregates instance-wide totals for the admin dashboard.
type Stats struct {
	TotalUsers       int64
	ActiveUsers      int64
	SuspendedUsers   int64
	TotalConnections int64
	ActiveAPIKeys    int64
}

// AdminStats computes the dashboard totals.
func (s *GormStore) AdminStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, s.db.WithContext(ctx).Model(&models.User{})},
		{&stats.ActiveUsers, s.db.WithContext(ctx).Model(&models.User{}).Where("status = ?", models.UserStatusActive)},
		{&stats.SuspendedUsers, s.db.WithContext(ctx).Model(&models.User{}).Where("status = ?", models.UserStatusSuspended)},
		{&stats.TotalConnections, s.db.WithContext(ctx).Model(&models.Connection{})},
		{&stats.ActiveAPIKeys, s.db.WithContext(ctx).Model(&models.APIKey{}).Where("status = ?", models.APIKeyStatusActive)},
	}
	for _, item := range counts {
		if errCount := item.query.Count(item.dest).Error; errCount != nil {
			return nil, fmt.Errorf("store: admin stats: %w", errCount)
		}
	}
	return stats, nil
}

// FindConnectionByID loads a connection by primary key.
func (s *GormStore) FindConnectionByID(ctx context.Context, id uint64) (*models.Connection, error) {
	var conn models.Connection
	if errFind := s.db.WithContext(ctx).First(&conn, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: find connection: %w", errFind)
	}
	return &conn, nil
}

// CreateConnection inserts a new upstream connection.
func (s *GormStore) CreateConnection(ctx context.Context, conn *models.Connection) error {
	if errCreate := s.db.WithContext(ctx).Create(conn).Error; errCreate != nil {
		return fmt.Errorf("store: create connection: %w", errCreate)
	}
	return nil
}

// CountConnections counts a user's connections regardless of status.
func (s *GormStore) CountConnections(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	if errCount := s.db.WithContext(ctx).
		Model(&models.Connection{}).
		Where("user_id = ?", userID).
		Count(&count).Error; errCount != nil {
		return 0, fmt.Errorf("store: count connections: %w", errCount)
	}
	return count, nil
}

// ListConnections returns a user's connections, newest first.
func (s *GormStore) ListConnections(ctx context.Context, userID uint64) ([]models.Connection, error) {
	var conns []models.Connection
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&conns).Error; errFind != nil {
		return nil, fmt.Errorf("store: list connections: %w", errFind)
	}
	return conns, nil
}

// DeleteConnection removes a user's connection by ID.
func (s *GormStore) DeleteConnection(ctx context.Context, userID, connectionID uint64) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", connectionID, userID).
		Delete(&models.Connection{})
	if result.Error != nil {
		return fmt.Errorf("store: delete connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindPlan loads a plan by tier name.
func (s *GormStore) FindPlan(ctx context.Context, tier string) (*models.Plan, error) {
	var plan models.Plan
	if errFind := s.db.WithContext(ctx).Where("tier = ?", tier).First(&plan).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: find plan: %w", errFind)
	}
	return &plan, nil
}

// ListPlans returns enabled plans in display order.
func (s *GormStore) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if errFind := s.db.WithContext(ctx).
		Where("is_enabled = ?", true).
		Order("sort_order ASC, created_at DESC").
		Find(&plans).Error; errFind != nil {
		return nil, fmt.Errorf("store: list plans: %w", errFind)
	}
	return plans, nil
}

// CreateAPIKey inserts a new API key record.
func (s *GormStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if errCreate := s.db.WithContext(ctx).Create(key).Error; errCreate != nil {
		return fmt.Errorf("store: create api key: %w", errCreate)
	}
	return nil
}

// ListAPIKeys returns a user's API key records, newest first. The plaintext
// key never appears here; only hashes and display prefixes are stored.
func (s *GormStore) ListAPIKeys(ctx context.Context, userID uint64) ([]models.APIKey, error) {
	var keys []models.APIKey
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&keys).Error; errFind != nil {
		return nil, fmt.Errorf("store: list api keys: %w", errFind)
	}
	return keys, nil
}

// RevokeAPIKey flips a key to revoked. Revocation is permanent; there is no
// reverse operation.
func (s *GormStore) RevokeAPIKey(ctx context.Context, userID, keyID uint64) error {
	result := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ? AND user_id = ?", keyID, userID).
		Updates(map[string]any{
			"status":     models.APIKeyStatusRevoked,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("store: revoke api key: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchAPIKeyLastUsed stamps last_used_at on a key record.
func (s *GormStore) TouchAPIKeyLastUsed(ctx context.Context, keyID uint64) error {
	now := time.Now().UTC()
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", keyID).
		UpdateColumn("last_used_at", now).Error; errUpdate != nil {
		return fmt.Errorf("store: touch api key: %w", errUpdate)
	}
	return nil
}
