// Package repo implements the data persistence layer for contact records,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the stats endpoint and for conditional responses (ETag generation) in
// the HTTP layer. Each function is context-aware and safe to call from
// services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-contact-identity/internal/domain"
)

// ContactStats holds aggregate counts over the live contact table.
type ContactStats struct {
	Total     int64
	Primary   int64
	Secondary int64
}

// CountByPrecedence returns total, primary, and secondary contact counts.
// Soft-deleted rows are excluded. On DB error, it returns the error.
func CountByPrecedence(ctx context.Context, db *gorm.DB) (ContactStats, error) {
	var s ContactStats
	if err := db.WithContext(ctx).Model(&domain.Contact{}).Count(&s.Total).Error; err != nil {
		return ContactStats{}, err
	}
	if err := db.WithContext(ctx).Model(&domain.Contact{}).
		Where("precedence = ?", domain.PrecedencePrimary).
		Count(&s.Primary).Error; err != nil {
		return ContactStats{}, err
	}
	s.Secondary = s.Total - s.Primary
	return s, nil
}

// ContactsStats returns aggregate metadata for the contact table: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
//
// When the table is empty, the returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total live contacts
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ContactsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Contact{})

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
