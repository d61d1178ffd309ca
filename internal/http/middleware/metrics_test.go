package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/observability"
)

func TestMetricsSeparatesUpgrades(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "true")
	gin.SetMode(gin.TestMode)
	m := observability.Init(nil)
	if m == nil {
		t.Fatalf("metrics not enabled")
	}

	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/ws", func(c *gin.Context) {
		if c.Query("userId") == "" {
			c.AbortWithStatus(http.StatusBadRequest)
		}
	})
	r.GET("/healthcheck", func(c *gin.Context) { c.Status(http.StatusOK) })

	upgrade := func(target string) {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Connection", "Upgrade")
		req.Header.Set("Upgrade", "websocket")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	upgrade("/ws?userId=1&role=customer")
	upgrade("/ws")
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`hd_api_requests_total{method="GET",route="/ws",status="101"} 1`,
		`hd_api_requests_total{method="GET",route="/ws",status="400"} 1`,
		`hd_api_request_duration_seconds_count{method="GET",route="/healthcheck",status="200"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, `hd_api_request_duration_seconds_count{method="GET",route="/ws"`) {
		t.Fatalf("upgrade leaked into latency histogram:\n%s", out)
	}
}
