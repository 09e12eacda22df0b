// Package repo implements the data persistence layer for contact records,
// backed by GORM. This file provides the contact store consumed by the
// identity resolver.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no linking logic, only CRUD
// persistence and query composition. Soft-deleted rows are excluded from
// every query by GORM's DeletedAt handling.
//
// Error semantics:
//   - When a contact is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.IdentityService) which owns the linking and consolidation
// rules.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-contact-identity/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// FindByEmailOrPhone returns every contact whose email equals email or whose
// phone equals phone, ordered by creation time ascending. Nil arguments are
// skipped; callers must supply at least one (the resolver enforces this).
func FindByEmailOrPhone(ctx context.Context, db *gorm.DB, email, phone *string) ([]domain.Contact, error) {
	q := db.WithContext(ctx).Model(&domain.Contact{})
	switch {
	case email != nil && phone != nil:
		q = q.Where("email = ? OR phone = ?", *email, *phone)
	case email != nil:
		q = q.Where("email = ?", *email)
	case phone != nil:
		q = q.Where("phone = ?", *phone)
	default:
		return nil, nil
	}
	var out []domain.Contact
	err := q.Order("created_at asc, id asc").Find(&out).Error
	return out, err
}

// GetContact fetches a single contact by id. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetContact(ctx context.Context, db *gorm.DB, id uint) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateContact inserts a new contact row. The id is assigned by the store;
// CreatedAt/UpdatedAt are set to UTC now. linkedID must be nil for primaries
// and reference a primary contact for secondaries.
//
// On success, it returns the persisted Contact. On failure, a DB error.
func CreateContact(ctx context.Context, db *gorm.DB, email, phone *string, precedence string, linkedID *uint) (*domain.Contact, error) {
	now := time.Now().UTC()
	c := &domain.Contact{
		Email:      email,
		Phone:      phone,
		LinkedID:   linkedID,
		Precedence: precedence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateLinkage rewrites a contact's precedence and linked id, bumping
// UpdatedAt. Used by merges to demote primaries and re-point secondaries.
// If no row is affected, it returns ErrNotFound.
func UpdateLinkage(ctx context.Context, db *gorm.DB, id uint, precedence string, linkedID *uint) error {
	res := db.WithContext(ctx).
		Model(&domain.Contact{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"precedence": precedence,
			"linked_id":  linkedID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListGroup returns the primary identified by primaryID together with every
// secondary linked to it, ordered by creation time ascending (id breaks ties
// so equal timestamps stay deterministic).
func ListGroup(ctx context.Context, db *gorm.DB, primaryID uint) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Where("id = ? OR linked_id = ?", primaryID, primaryID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// CountContacts returns the total number of live contact rows.
func CountContacts(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Contact{}).Count(&total).Error
	return total, err
}

// ListContactsPage returns a page of contacts ordered by creation time
// ascending. The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListContactsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Contact, error) {
	var out []domain.Contact
	err := db.WithContext(ctx).
		Order("created_at asc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ResetContacts hard-deletes every contact row, including soft-deleted ones.
// SQLite's autoincrement counter is rewound best-effort so a reset store
// hands out ids from 1 again; Postgres deployments keep their sequence.
func ResetContacts(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).Exec("DELETE FROM contacts").Error; err != nil {
		return err
	}
	db.WithContext(ctx).Exec("DELETE FROM sqlite_sequence WHERE name = 'contacts'")
	return nil
}
