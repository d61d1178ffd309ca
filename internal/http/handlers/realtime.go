package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yungbote/helpdesk-backend/internal/http/middleware"
	"github.com/yungbote/helpdesk-backend/internal/http/response"
	"github.com/yungbote/helpdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime"
	"github.com/yungbote/helpdesk-backend/internal/services"
)

var errInvalidIdentity = errors.New("userId and role (business|customer|employee) are required")

type RealtimeHandler struct {
	log      *logger.Logger
	auth     services.AuthService
	gateway  *realtime.Gateway
	upgrader websocket.Upgrader
}

// NewRealtimeHandler builds the websocket endpoint. allowedOrigins empty
// accepts any Origin.
func NewRealtimeHandler(log *logger.Logger, auth services.AuthService, gateway *realtime.Gateway, allowedOrigins []string) *RealtimeHandler {
	h := &RealtimeHandler{
		log:     log.With("handler", "RealtimeHandler"),
		auth:    auth,
		gateway: gateway,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(allowedOrigins),
	}
	return h
}

// GET /ws?userId=&role=&token=
func (h *RealtimeHandler) Connect(c *gin.Context) {
	claimed, ok := middleware.ClaimedIdentity(c)
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_identity", errInvalidIdentity)
		return
	}
	id, err := h.auth.Authenticate(middleware.ExtractToken(c), claimed)
	if err != nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
		return
	}
	c.Request = c.Request.WithContext(ctxutil.WithIdentity(c.Request.Context(), id))

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		h.log.Warn("websocket upgrade failed", "error", err, "identity", id.Key())
		return
	}
	h.gateway.Serve(c.Request.Context(), id, realtime.Socket(ws))
}

// GET /api/realtime/online
func (h *RealtimeHandler) Online(c *gin.Context) {
	response.RespondOK(c, gin.H{"online": h.gateway.Registry().Online()})
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// non-browser clients send no Origin
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}
