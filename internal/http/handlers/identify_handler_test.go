package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-contact-identity/internal/domain"
	"github.com/tbourn/go-contact-identity/internal/repo"
	"github.com/tbourn/go-contact-identity/internal/services"
)

// ---------- test DB + repo shim ----------

func newContactDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:identity_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Contact{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Minimal shim implementing services.ContactRepo using repo package (like router.go)
type testContactRepo struct{}

func (testContactRepo) FindByEmailOrPhone(ctx context.Context, db *gorm.DB, email, phone *string) ([]domain.Contact, error) {
	return repo.FindByEmailOrPhone(ctx, db, email, phone)
}

func (testContactRepo) GetContact(ctx context.Context, db *gorm.DB, id uint) (*domain.Contact, error) {
	return repo.GetContact(ctx, db, id)
}

func (testContactRepo) CreateContact(ctx context.Context, db *gorm.DB, email, phone *string, precedence string, linkedID *uint) (*domain.Contact, error) {
	return repo.CreateContact(ctx, db, email, phone, precedence, linkedID)
}

func (testContactRepo) UpdateLinkage(ctx context.Context, db *gorm.DB, id uint, precedence string, linkedID *uint) error {
	return repo.UpdateLinkage(ctx, db, id, precedence, linkedID)
}

func (testContactRepo) ListGroup(ctx context.Context, db *gorm.DB, primaryID uint) ([]domain.Contact, error) {
	return repo.ListGroup(ctx, db, primaryID)
}

func (testContactRepo) CountContacts(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountContacts(ctx, db)
}

func (testContactRepo) ListContactsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Contact, error) {
	return repo.ListContactsPage(ctx, db, offset, limit)
}

func (testContactRepo) ResetContacts(ctx context.Context, db *gorm.DB) error {
	return repo.ResetContacts(ctx, db)
}

// ---------- engine wiring ----------

func newIdentifyRouter(t *testing.T) (*gin.Engine, *services.IdentityService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := services.NewIdentityService(newContactDB(t), testContactRepo{})
	h := New(svc)

	r := gin.New()
	r.POST("/identify", h.Identify)
	r.GET("/contacts", h.ListContacts)
	r.GET("/contacts/stats", h.ContactStats)
	r.DELETE("/contacts/reset", h.ResetContacts)
	return r, svc
}

func postIdentify(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/identify", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ---------- tests ----------

func TestIdentify_InvalidJSON(t *testing.T) {
	r, _ := newIdentifyRouter(t)

	w := postIdentify(t, r, `{"email": 123`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q; want %q", resp.Code, ErrCodeBadRequest)
	}
}

func TestIdentify_MissingIdentifiers(t *testing.T) {
	r, _ := newIdentifyRouter(t)

	w := postIdentify(t, r, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeBadRequest || resp.Message != "email or phone is required" {
		t.Fatalf("unexpected error envelope: %+v", resp)
	}
}

func TestIdentify_CreatesAndLinks(t *testing.T) {
	r, _ := newIdentifyRouter(t)

	w := postIdentify(t, r, `{"email":"lorraine@hillvalley.edu","phone":"123456"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first identify status = %d; body=%s", w.Code, w.Body.String())
	}

	w = postIdentify(t, r, `{"email":"mcfly@hillvalley.edu","phone":"123456"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("second identify status = %d; body=%s", w.Code, w.Body.String())
	}

	var view services.ConsolidatedContact
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.PrimaryID == 0 || len(view.Emails) != 2 || len(view.Phones) != 1 || len(view.SecondaryIDs) != 1 {
		t.Fatalf("unexpected consolidated view: %+v", view)
	}
	if view.Emails[0] != "lorraine@hillvalley.edu" {
		t.Fatalf("primary email must lead: %v", view.Emails)
	}
}

func TestIdentify_ServiceError_Returns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(stubIdentitySvc{resolveErr: errors.New("boom")})

	r := gin.New()
	r.POST("/identify", h.Identify)

	w := postIdentify(t, r, `{"email":"a@x.y"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeIdentifyFailed {
		t.Fatalf("code = %q; want %q", resp.Code, ErrCodeIdentifyFailed)
	}
}

// stubIdentitySvc lets handler tests force specific service outcomes.
type stubIdentitySvc struct {
	resolveErr error
	statsErr   error
	listErr    error
	resetErr   error
}

func (s stubIdentitySvc) Resolve(ctx context.Context, email, phone *string) (*services.ConsolidatedContact, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	return &services.ConsolidatedContact{PrimaryID: 1, Emails: []string{}, Phones: []string{}, SecondaryIDs: []uint{}}, nil
}

func (s stubIdentitySvc) Stats(ctx context.Context) (repo.ContactStats, error) {
	if s.statsErr != nil {
		return repo.ContactStats{}, s.statsErr
	}
	return repo.ContactStats{Total: 2, Primary: 1, Secondary: 1}, nil
}

func (s stubIdentitySvc) ListPage(ctx context.Context, page, pageSize int) ([]domain.Contact, int64, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return []domain.Contact{}, 0, nil
}

func (s stubIdentitySvc) Reset(ctx context.Context) error { return s.resetErr }
