// Identity HTTP handlers.
//
// This file exposes the core REST endpoint of the service:
//   - POST /identify  (resolve + consolidate an incoming email/phone pair)
//
// Handlers are transport-thin: they validate input, call the identity
// service, and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-contact-identity/internal/domain"
	"github.com/tbourn/go-contact-identity/internal/repo"
	"github.com/tbourn/go-contact-identity/internal/services"
)

//
// Service contract (context-aware)
//

// IdentityService defines the resolver operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IdentityService interface {
	// Resolve links an incoming email/phone pair into the contact graph and
	// returns the consolidated identity view.
	Resolve(ctx context.Context, email, phone *string) (*services.ConsolidatedContact, error)
	// Stats returns live contact counts split by precedence.
	Stats(ctx context.Context) (repo.ContactStats, error)
	// ListPage returns a page of raw contact rows and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error)
	// Reset removes every contact row.
	Reset(ctx context.Context) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for identity resolution and the contact
// inspection surface. It depends on an abstract service interface to keep
// transport concerns separate from linking logic.
type Handlers struct {
	idSvc IdentityService
}

// New constructs and returns a Handlers instance bound to the given service.
func New(idSvc IdentityService) *Handlers {
	return &Handlers{idSvc: idSvc}
}

//
// DTOs
//

// IdentifyRequest is the JSON payload for resolving an identity. At least one
// of the two fields must be present and non-blank.
type IdentifyRequest struct {
	// Email optionally identifies the customer by address.
	Email *string `json:"email" example:"mcfly@hillvalley.edu"`
	// Phone optionally identifies the customer by phone number.
	Phone *string `json:"phone" example:"555-0123"`
}

//
// Handlers
//

// Identify godoc
// @ID          identify
// @Summary     Resolve a customer identity
// @Description Links the supplied email/phone pair into the contact graph, creating or merging identity chains as needed, and returns the consolidated identity.
// @Tags        Identity
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.IdentifyRequest  true  "Identify payload (email and/or phone)"
//
// @Success     200  {object}  services.ConsolidatedContact
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /identify [post]
func (h *Handlers) Identify(c *gin.Context) {
	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	view, err := h.idSvc.Resolve(c.Request.Context(), req.Email, req.Phone)
	if err != nil {
		if errors.Is(err, services.ErrNoIdentifier) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email or phone is required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeIdentifyFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, view)
}
