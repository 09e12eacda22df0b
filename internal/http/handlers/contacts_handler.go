// Contact inspection HTTP handlers.
//
// This file exposes the supporting REST endpoints around the contact table:
//   - GET    /contacts        (raw rows, paginated, ETag support)
//   - GET    /contacts/stats  (counts by precedence)
//   - DELETE /contacts/reset  (clear the table; test-console convenience)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-contact-identity/internal/domain"
	"github.com/tbourn/go-contact-identity/internal/repo"
	"github.com/tbourn/go-contact-identity/internal/services"
	"github.com/tbourn/go-contact-identity/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListContactsResponse wraps a page of contacts and pagination information.
type ListContactsResponse struct {
	Contacts   []domain.Contact `json:"contacts"`
	Pagination Pagination       `json:"pagination"`
}

// StatsResponse reports live contact counts split by precedence.
type StatsResponse struct {
	TotalContacts     int64 `json:"total_contacts"`
	PrimaryContacts   int64 `json:"primary_contacts"`
	SecondaryContacts int64 `json:"secondary_contacts"`
}

// ResetResponse confirms a completed table reset.
type ResetResponse struct {
	Message           string `json:"message"`
	TotalContacts     int64  `json:"total_contacts"`
	PrimaryContacts   int64  `json:"primary_contacts"`
	SecondaryContacts int64  `json:"secondary_contacts"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ListContacts godoc
// @ID          listContacts
// @Summary     List contact rows (paginated)
// @Description Returns a page of raw contact rows, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Contacts
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListContactsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.idSvc.(*services.IdentityService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ContactsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"contacts:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.idSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListContactsResponse{
		Contacts: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// ContactStats godoc
// @ID          contactStats
// @Summary     Contact table statistics
// @Description Returns live contact counts split by link precedence.
// @Tags        Contacts
// @Produce     json
//
// @Success     200  {object} handlers.StatsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/stats [get]
func (h *Handlers) ContactStats(c *gin.Context) {
	st, err := h.idSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, StatsResponse{
		TotalContacts:     st.Total,
		PrimaryContacts:   st.Primary,
		SecondaryContacts: st.Secondary,
	})
}

// ResetContacts godoc
// @ID          resetContacts
// @Summary     Reset the contact table
// @Description Deletes every contact row. Intended for the browser test console and local development; the resolver itself never deletes.
// @Tags        Contacts
// @Produce     json
//
// @Success     200  {object} handlers.ResetResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/reset [delete]
func (h *Handlers) ResetContacts(c *gin.Context) {
	if err := h.idSvc.Reset(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeResetFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ResetResponse{Message: "contact table reset"})
}
