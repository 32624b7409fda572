package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/ping/:id", "200"))

	req, _ := http.NewRequest("GET", "/ping/42", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	after := testutil.ToFloat64(HTTPRequests.WithLabelValues("GET", "/ping/:id", "200"))
	if after-before != 1 {
		t.Errorf("Expected counter to increase by 1, got %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	Reconciliations.WithLabelValues("update", "changed").Inc()

	req, _ := http.NewRequest("GET", "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "linkrem_tag_reconciliations_total") {
		t.Error("Expected reconciliation counter in metrics output")
	}
}
