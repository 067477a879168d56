package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/accounts/:id/balance", func(c *gin.Context) {
		c.String(http.StatusOK, `{"balance":50}`)
	})
	// 204 with no body exercises the size==-1 skip.
	r.POST("/reconciliation/flags/:id/resolve", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// Collectors are package globals; take baselines so parallel test files
	// cannot skew the deltas.
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/accounts/:id/balance", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/accounts/a1/balance", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("balance request -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing route -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reconciliation/flags/f1/resolve", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("resolve request -> %d", w.Code)
	}

	// The matched route must be labeled with the Gin pattern, not the URL.
	gotOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/accounts/:id/balance", "200"))
	if gotOK != baseOK+1 {
		t.Fatalf("route-labeled counter = %v; want %v", gotOK, baseOK+1)
	}

	// Unmatched requests fall back to the raw path label.
	got404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))
	if got404 != base404+1 {
		t.Fatalf("fallback-labeled counter = %v; want %v", got404, base404+1)
	}

	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v after completion; want 0", inFlight)
	}
}
