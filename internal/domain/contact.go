// Package domain defines the persistence model for contact identity records.
// The Contact type is mapped with GORM and forms the core data layer of the
// identity resolution service.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Link precedence values. Exactly one contact per linked group is primary:
// the one with the earliest CreatedAt. Everyone else is secondary and points
// directly at the primary via LinkedID (never at another secondary).
const (
	PrecedencePrimary   = "primary"
	PrecedenceSecondary = "secondary"
)

// Contact represents one identity record seen on a purchase event. Contacts
// sharing an email address or phone number (directly or transitively) belong
// to the same group and are consolidated under a single primary.
//
// Fields:
//   - ID: auto-incremented primary key, immutable.
//   - Email / Phone: optional identifiers; at least one is set on every row
//     the resolver creates.
//   - LinkedID: set only on secondaries, referencing the group's primary.
//   - Precedence: "primary" or "secondary" (enforced by DB constraint).
//   - CreatedAt: immutable; the sole seniority tie-break during merges.
//   - UpdatedAt: bumped on every linkage rewrite.
//   - DeletedAt: soft deletion marker (retains row for audit/history; the
//     resolver itself never deletes).
type Contact struct {
	ID         uint           `json:"id"         gorm:"primaryKey"`
	Email      *string        `json:"email,omitempty"       gorm:"type:varchar(255);index:idx_contacts_email"`
	Phone      *string        `json:"phone,omitempty"       gorm:"type:varchar(32);index:idx_contacts_phone"`
	LinkedID   *uint          `json:"linked_id,omitempty"   gorm:"index:idx_contacts_linked"`
	Precedence string         `json:"precedence" gorm:"type:varchar(16);not null;default:'primary';check:precedence IN ('primary','secondary')"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// IsPrimary reports whether the contact anchors its group.
func (c *Contact) IsPrimary() bool { return c.Precedence == PrecedencePrimary }

// PrimaryID returns the id of the contact's group primary: its own id when
// primary, otherwise the referenced LinkedID.
func (c *Contact) PrimaryID() uint {
	if c.LinkedID != nil {
		return *c.LinkedID
	}
	return c.ID
}
