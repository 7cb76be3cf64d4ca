package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/paperbotai/paperbot/internal/pkg/errcode"
	"github.com/paperbotai/paperbot/internal/pkg/response"
	"github.com/paperbotai/paperbot/internal/service"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type createSessionRequest struct {
	WorkspaceID string `json:"workspace_id"`
	Title       string `json:"title"`
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	session, err := h.chats.CreateSession(c.Request.Context(), getUserID(c), req.WorkspaceID, req.Title)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, session)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	sessions, err := h.chats.ListSessions(c.Request.Context(), getUserID(c), c.Query("workspace_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, sessions)
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	session, messages, err := h.chats.GetSession(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"session": session, "messages": messages})
}

type sendMessageRequest struct {
	Content string `json:"content"`
	TopK    int    `json:"top_k"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.chats.SendMessage(c.Request.Context(), getUserID(c), c.Param("id"), req.Content, req.TopK)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
