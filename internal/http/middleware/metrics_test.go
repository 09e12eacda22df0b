package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMetricsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/things/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestMetrics_CountsByRouteAndStatus(t *testing.T) {
	r := newMetricsRouter()

	counter := httpReqs.WithLabelValues("GET", "/things/:id", "200")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things/42", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("counter = %v; want %v", got, before+1)
	}
}

func TestMetrics_UnmatchedRouteFallsBackToRawPath(t *testing.T) {
	r := newMetricsRouter()

	counter := httpReqs.WithLabelValues("GET", "/nope", "404")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("fallback counter = %v; want %v", got, before+1)
	}
}

func TestMetrics_InflightReturnsToZeroDelta(t *testing.T) {
	r := newMetricsRouter()

	before := testutil.ToFloat64(httpInflight)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/things/1", nil))

	if got := testutil.ToFloat64(httpInflight); got != before {
		t.Fatalf("inflight = %v; want %v after completion", got, before)
	}
}
