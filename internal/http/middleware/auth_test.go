package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/services"
)

func whoami(c *gin.Context) {
	id, ok := ctxutil.GetIdentity(c.Request.Context())
	if !ok {
		c.Status(http.StatusTeapot)
		return
	}
	c.String(http.StatusOK, id.Key())
}

func TestRequireAuthWithToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := services.NewAuthService(logger.Nop(), "secret", time.Minute)
	tok, err := svc.IssueToken(auth.NewIdentity(auth.RoleEmployee, 3))
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	r := gin.New()
	r.GET("/me", NewAuthMiddleware(logger.Nop(), svc).RequireAuth(), whoami)

	cases := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "bearer", header: "Bearer " + tok, status: http.StatusOK, body: "employee:3"},
		{name: "query token", query: "?token=" + tok, status: http.StatusOK, body: "employee:3"},
		{name: "mismatched claim", query: "?token=" + tok + "&userId=4&role=employee", status: http.StatusUnauthorized},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "claim without token", query: "?userId=3&role=employee", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status: want=%d got=%d", tc.status, rec.Code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("identity: want=%q got=%q", tc.body, rec.Body.String())
			}
		})
	}
}

func TestRequireAuthTrustsHeadersWhenDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := services.NewAuthService(logger.Nop(), "", 0)
	r := gin.New()
	r.GET("/me", NewAuthMiddleware(logger.Nop(), svc).RequireAuth(), whoami)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(headerUserID, "10")
	req.Header.Set(headerUserRole, "Business")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "business:10" {
		t.Fatalf("want=200 business:10 got=%d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/me?userId=abc&role=business", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad userId: want=%d got=%d", http.StatusUnauthorized, rec.Code)
	}
}
