// Package usage maintains the per-tenant monthly request ledger.
//
// Counters are monotonic: increments are single atomic UPDATE statements and
// rows are never decremented or deleted. Month rollover needs no reset; the
// first request of a new month lazily creates a fresh row.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/gragdev/grag-gateway/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CurrentYearMonth derives the ledger month key, YYYY-MM in UTC.
func CurrentYearMonth(now time.Time) string {
	return now.UTC().Format("2006-01")
}

// Ledger reads and updates monthly usage rows.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a Ledger backed by GORM.
func NewLedger(db *gorm.DB) *Ledger { return &Ledger{db: db} }

// GetOrCreate returns the usage row for (userID, yearMonth), creating a
// zeroed row on first access of a month.
func (l *Ledger) GetOrCreate(ctx context.Context, userID uint64, yearMonth string) (*models.MonthlyUsage, error) {
	if l == nil || l.db == nil {
		return nil, fmt.Errorf("usage: ledger not initialized")
	}
	if errEnsure := l.ensureRow(ctx, userID, yearMonth); errEnsure != nil {
		return nil, errEnsure
	}

	var row models.MonthlyUsage
	if errFind := l.db.WithContext(ctx).
		Where("user_id = ? AND year_month = ?", userID, yearMonth).
		First(&row).Error; errFind != nil {
		return nil, fmt.Errorf("usage: load row: %w", errFind)
	}
	return &row, nil
}

// Increment atomically bumps request_count, and success_count when the
// upstream call succeeded. Concurrent increments for the same row are safe:
// the counters are advanced in a single UPDATE expression.
func (l *Ledger) Increment(ctx context.Context, userID uint64, yearMonth string, succeeded bool) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("usage: ledger not initialized")
	}
	if errEnsure := l.ensureRow(ctx, userID, yearMonth); errEnsure != nil {
		return errEnsure
	}

	updates := map[string]any{
		"request_count": gorm.Expr("request_count + 1"),
		"updated_at":    time.Now().UTC(),
	}
	if succeeded {
		updates["success_count"] = gorm.Expr("success_count + 1")
	}
	if errUpdate := l.db.WithContext(ctx).
		Model(&models.MonthlyUsage{}).
		Where("user_id = ? AND year_month = ?", userID, yearMonth).
		UpdateColumns(updates).Error; errUpdate != nil {
		return fmt.Errorf("usage: increment: %w", errUpdate)
	}
	return nil
}

// MonthTotals sums the counters of every tenant for one month.
func (l *Ledger) MonthTotals(ctx context.Context, yearMonth string) (requests, successes int64, err error) {
	if l == nil || l.db == nil {
		return 0, 0, fmt.Errorf("usage: ledger not initialized")
	}
	var totals struct {
		Requests  int64
		Successes int64
	}
	if errScan := l.db.WithContext(ctx).
		Model(&models.MonthlyUsage{}).
		Select("COALESCE(SUM(request_count), 0) AS requests, COALESCE(SUM(success_count), 0) AS successes").
		Where("year_month = ?", yearMonth).
		Scan(&totals).Error; errScan != nil {
		return 0, 0, fmt.Errorf("usage: month totals: %w", errScan)
	}
	return totals.Requests, totals.Successes, nil
}

// ensureRow inserts a zeroed row unless one already exists for the month.
func (l *Ledger) ensureRow(ctx context.Context, userID uint64, yearMonth string) error {
	row := models.MonthlyUsage{UserID: userID, YearMonth: yearMonth}
	if errCreate := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "year_month"}},
			DoNothing: true,
		}).
		Create(&row).Error; errCreate != nil {
		return fmt.Errorf("usage: ensure row: %w", errCreate)
	}
	return nil
}
