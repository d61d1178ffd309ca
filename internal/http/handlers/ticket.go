package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/data/repos"
	"github.com/yungbote/helpdesk-backend/internal/http/response"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/services"
)

type TicketHandler struct {
	tickets services.TicketService
}

func NewTicketHandler(tickets services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

// POST /api/tickets/:id/claim
func (h *TicketHandler) Claim(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	t, err := h.tickets.Claim(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ticket": t})
}

// POST /api/tickets/:id/resolve
func (h *TicketHandler) Resolve(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	t, err := h.tickets.Resolve(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ticket": t})
}

// GET /api/tickets/:id/messages?limit=&before=
func (h *TicketHandler) Messages(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	msgs, err := h.tickets.History(dbctx.Context{Ctx: c.Request.Context()}, id, q)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return 0, false
	}
	return v, true
}

func pageQuery(c *gin.Context) (repos.ListQuery, bool) {
	var q repos.ListQuery
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return q, false
		}
		q.Limit = n
	}
	if raw := c.Query("before"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_before", err)
			return q, false
		}
		q.BeforeID = n
	}
	return q, true
}
