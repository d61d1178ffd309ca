package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/helpdesk-backend/internal/http/response"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/services"
)

type MessageHandler struct {
	messages services.MessageService
}

func NewMessageHandler(messages services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// GET /api/direct/:userId/messages?limit=&before=
func (h *MessageHandler) Direct(c *gin.Context) {
	peer, ok := uintParam(c, "userId")
	if !ok {
		return
	}
	q, ok := pageQuery(c)
	if !ok {
		return
	}
	msgs, err := h.messages.DirectHistory(dbctx.Context{Ctx: c.Request.Context()}, peer, q)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

// GET /api/unread
func (h *MessageHandler) Unread(c *gin.Context) {
	counters, err := h.messages.Unread(dbctx.Context{Ctx: c.Request.Context()})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"unread": counters})
}
