// Package services – consolidated view builder
//
// This file implements the pure half of identity resolution: folding a
// flattened contact group into the deduplicated, ordered view returned to
// callers. It performs no store access and has no side effects, which keeps
// the ordering rules independently testable from the resolver's write paths.
package services

import (
	"sort"

	"github.com/tbourn/go-contact-identity/internal/domain"
)

// ConsolidatedContact is the caller-facing view of one identity group.
//
// Ordering guarantees:
//   - Emails and Phones start with the primary's own value (when set),
//     followed by the remaining distinct values in ascending creation order
//     of their owning contact, first occurrence kept on duplicates.
//   - SecondaryIDs ascend by creation time.
type ConsolidatedContact struct {
	PrimaryID    uint     `json:"primaryId"`
	Emails       []string `json:"emails"`
	Phones       []string `json:"phones"`
	SecondaryIDs []uint   `json:"secondaryIds"`
}

// Consolidate builds the ConsolidatedContact for a flattened group. The group
// must contain the contact identified by primaryID; remaining members may
// arrive in any order. Empty email/phone values are skipped.
func Consolidate(group []domain.Contact, primaryID uint) ConsolidatedContact {
	sorted := make([]domain.Contact, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	out := ConsolidatedContact{
		PrimaryID:    primaryID,
		Emails:       []string{},
		Phones:       []string{},
		SecondaryIDs: []uint{},
	}

	seenEmail := map[string]bool{}
	seenPhone := map[string]bool{}
	appendValues := func(c *domain.Contact) {
		if c.Email != nil && *c.Email != "" && !seenEmail[*c.Email] {
			seenEmail[*c.Email] = true
			out.Emails = append(out.Emails, *c.Email)
		}
		if c.Phone != nil && *c.Phone != "" && !seenPhone[*c.Phone] {
			seenPhone[*c.Phone] = true
			out.Phones = append(out.Phones, *c.Phone)
		}
	}

	// Primary's own values come first regardless of its position in the group.
	for i := range sorted {
		if sorted[i].ID == primaryID {
			appendValues(&sorted[i])
			break
		}
	}
	for i := range sorted {
		if sorted[i].ID == primaryID {
			continue
		}
		appendValues(&sorted[i])
		out.SecondaryIDs = append(out.SecondaryIDs, sorted[i].ID)
	}
	return out
}
