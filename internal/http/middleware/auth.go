package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/services"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth resolves the caller identity from a bearer token, or from the
// claimed userId/role when token auth is disabled.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimed, _ := ClaimedIdentity(c)
		id, err := am.authService.Authenticate(ExtractToken(c), claimed)
		if err != nil {
			am.log.Debug("request rejected", "error", err, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid credentials", "code": "unauthorized"},
			})
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// ClaimedIdentity reads userId and role from the query string, falling back to
// the X-User-Id and X-User-Role headers.
func ClaimedIdentity(c *gin.Context) (auth.Identity, bool) {
	rawID := c.Query("userId")
	if rawID == "" {
		rawID = c.GetHeader(headerUserID)
	}
	rawRole := c.Query("role")
	if rawRole == "" {
		rawRole = c.GetHeader(headerUserRole)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		return auth.Identity{}, false
	}
	role, ok := auth.ParseRole(rawRole)
	if !ok {
		return auth.Identity{}, false
	}
	return auth.NewIdentity(role, id), true
}

func ExtractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
