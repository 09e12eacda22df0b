// Package services – IdentityService
//
// This file implements the identity resolver, the component that decides for
// every incoming (email, phone) pair whether to create a new identity, attach
// a secondary to an existing one, or merge two previously separate identity
// chains. It validates and normalizes input, reads matching contacts through
// the ContactRepo contract, applies the required mutations inside a single
// transaction, and returns the consolidated view of the resulting group.
//
// Linking rules:
//   - No match at all: a new primary contact is created.
//   - One reachable primary: a new secondary is created only when the request
//     carries an email or phone value not present anywhere in the group, so
//     every distinct pairing ever seen is retained as its own row.
//   - Multiple reachable primaries: the oldest survives; every younger primary
//     is demoted to secondary and all of its secondaries are re-pointed
//     directly at the survivor, keeping the group flat (no two-hop chains).
//
// Observability: public methods are OpenTelemetry-instrumented, and resolver
// outcomes (rows created, merges performed) feed Prometheus counters.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-identity/internal/domain"
	"github.com/tbourn/go-contact-identity/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
)

var (
	// contactsCreated counts rows inserted by the resolver, by precedence.
	contactsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_contacts_created_total",
			Help: "Total number of contact rows created by the resolver.",
		},
		[]string{"precedence"},
	)

	// identityMerges counts requests that unified two or more identity chains.
	identityMerges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "identity_merges_total",
			Help: "Total number of identity chain merges performed.",
		},
	)
)

func init() {
	prometheus.MustRegister(contactsCreated, identityMerges)
}

// ContactRepo defines the store contract required by IdentityService.
// Implementations are responsible for persistence of contact rows.
type ContactRepo interface {
	// FindByEmailOrPhone returns contacts matching either identifier.
	FindByEmailOrPhone(ctx context.Context, db *gorm.DB, email, phone *string) ([]domain.Contact, error)

	// GetContact fetches a contact by id (ErrNotFound when missing).
	GetContact(ctx context.Context, db *gorm.DB, id uint) (*domain.Contact, error)

	// CreateContact inserts a row, assigning id and timestamps.
	CreateContact(ctx context.Context, db *gorm.DB, email, phone *string, precedence string, linkedID *uint) (*domain.Contact, error)

	// UpdateLinkage rewrites precedence/linked id and bumps updated_at.
	UpdateLinkage(ctx context.Context, db *gorm.DB, id uint, precedence string, linkedID *uint) error

	// ListGroup returns a primary and all of its secondaries, oldest first.
	ListGroup(ctx context.Context, db *gorm.DB, primaryID uint) ([]domain.Contact, error)

	// CountContacts returns the number of live contact rows.
	CountContacts(ctx context.Context, db *gorm.DB) (int64, error)

	// ListContactsPage returns a page of contacts, oldest first.
	ListContactsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Contact, error)

	// ResetContacts removes every contact row.
	ResetContacts(ctx context.Context, db *gorm.DB) error
}

// IdentityService coordinates contact matching, linking, and consolidation.
type IdentityService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the contact store used by this service.
	Repo ContactRepo
}

// NewIdentityService constructs an IdentityService over db and r.
func NewIdentityService(db *gorm.DB, r ContactRepo) *IdentityService {
	return &IdentityService{DB: db, Repo: r}
}

// Resolve links the incoming identifiers into the contact graph and returns
// the consolidated identity. At least one of email/phone must be non-blank;
// otherwise ErrNoIdentifier is returned. Store failures propagate unchanged.
//
// All mutations of one request (demotions, re-links, the optional insert) run
// inside a single transaction, so a failed merge leaves no half-rewritten
// group behind.
func (s *IdentityService) Resolve(ctx context.Context, email, phone *string) (*ConsolidatedContact, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.Bool("identify.has_email", email != nil),
			attribute.Bool("identify.has_phone", phone != nil),
		),
	)
	defer span.End()

	email = normalizeEmail(email)
	phone = normalizePhone(phone)
	if email == nil && phone == nil {
		return nil, ErrNoIdentifier
	}

	matches, err := s.Repo.FindByEmailOrPhone(ctx, s.DB, email, phone)
	if err != nil {
		return nil, err
	}

	// Unseen identifiers: start a fresh identity.
	if len(matches) == 0 {
		c, err := s.Repo.CreateContact(ctx, s.DB, email, phone, domain.PrecedencePrimary, nil)
		if err != nil {
			return nil, err
		}
		contactsCreated.WithLabelValues(domain.PrecedencePrimary).Inc()
		view := Consolidate([]domain.Contact{*c}, c.ID)
		return &view, nil
	}

	primaries, err := s.reachablePrimaries(ctx, matches)
	if err != nil {
		return nil, err
	}
	survivor := primaries[0]
	span.SetAttributes(attribute.Int("identify.primaries", len(primaries)))

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Bridge request: demote every younger primary and flatten its chain.
		if len(primaries) > 1 {
			for _, loser := range primaries[1:] {
				chain, err := s.Repo.ListGroup(ctx, tx, loser.ID)
				if err != nil {
					return err
				}
				for i := range chain {
					if err := s.Repo.UpdateLinkage(ctx, tx, chain[i].ID, domain.PrecedenceSecondary, &survivor.ID); err != nil {
						return err
					}
				}
			}
			identityMerges.Inc()
		}

		group, err := s.Repo.ListGroup(ctx, tx, survivor.ID)
		if err != nil {
			return err
		}
		// Record a previously unseen pairing as its own secondary row. When
		// both values are already known somewhere in the group (even split
		// across rows), nothing is inserted.
		if carriesNewValue(group, email, phone) {
			if _, err := s.Repo.CreateContact(ctx, tx, email, phone, domain.PrecedenceSecondary, &survivor.ID); err != nil {
				return err
			}
			contactsCreated.WithLabelValues(domain.PrecedenceSecondary).Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	group, err := s.Repo.ListGroup(ctx, s.DB, survivor.ID)
	if err != nil {
		return nil, err
	}
	view := Consolidate(group, survivor.ID)
	return &view, nil
}

// reachablePrimaries maps the direct match set to its distinct group
// primaries, ordered by creation time ascending (the merge survivor first).
func (s *IdentityService) reachablePrimaries(ctx context.Context, matches []domain.Contact) ([]domain.Contact, error) {
	byID := make(map[uint]domain.Contact, len(matches))
	for i := range matches {
		m := matches[i]
		pid := m.PrimaryID()
		if _, ok := byID[pid]; ok {
			continue
		}
		if m.IsPrimary() {
			byID[pid] = m
			continue
		}
		p, err := s.Repo.GetContact(ctx, s.DB, pid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrContactNotFound
			}
			return nil, err
		}
		byID[pid] = *p
	}

	out := make([]domain.Contact, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Stats returns the live contact counts split by precedence.
func (s *IdentityService) Stats(ctx context.Context) (repo.ContactStats, error) {
	return repo.CountByPrecedence(ctx, s.DB)
}

// ListPage returns a page of raw contact rows and the total count.
// It applies defaults for invalid page/pageSize values.
func (s *IdentityService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error) {
	tr := otel.Tracer("services/IdentityService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountContacts(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Contact{}, 0, nil
	}

	items, err := s.Repo.ListContactsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Reset drops every contact row. Exposed for the test-console reset endpoint.
func (s *IdentityService) Reset(ctx context.Context) error {
	return s.Repo.ResetContacts(ctx, s.DB)
}

// emailFolder lowercases email addresses with full Unicode case folding so
// equality matching is consistent with how the values were stored.
var emailFolder = cases.Fold()

// normalizeEmail trims and case-folds an optional email; blank becomes nil.
func normalizeEmail(v *string) *string {
	if v == nil {
		return nil
	}
	e := emailFolder.String(strings.TrimSpace(*v))
	if e == "" {
		return nil
	}
	return &e
}

// normalizePhone trims an optional phone number; blank becomes nil. Phone
// values are stored verbatim otherwise (formatting is the caller's contract).
func normalizePhone(v *string) *string {
	if v == nil {
		return nil
	}
	p := strings.TrimSpace(*v)
	if p == "" {
		return nil
	}
	return &p
}

// carriesNewValue reports whether the request introduces an email or phone
// value absent from every row of the group.
func carriesNewValue(group []domain.Contact, email, phone *string) bool {
	if email != nil {
		known := false
		for i := range group {
			if group[i].Email != nil && *group[i].Email == *email {
				known = true
				break
			}
		}
		if !known {
			return true
		}
	}
	if phone != nil {
		known := false
		for i := range group {
			if group[i].Phone != nil && *group[i].Phone == *phone {
				known = true
				break
			}
		}
		if !known {
			return true
		}
	}
	return false
}
