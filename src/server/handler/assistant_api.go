package handler

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/tunecast/tunecast/src/server/middleware"
	models "github.com/tunecast/tunecast/src/server/model"
	"github.com/tunecast/tunecast/src/server/service"

	"github.com/gin-gonic/gin"
)

// AssistantHandler serves the AI assistant thread
type AssistantHandler struct {
	DB        *sql.DB
	Assistant *service.AssistantService
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}

// Chat handles one assistant turn, gated on the tier's token budget
func (h *AssistantHandler) Chat(c *gin.Context) {
	user := middleware.GetUser(c)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrInvalidInput, "message is required")
		return
	}
	if len(req.Message) > 4000 {
		RespondError(c, http.StatusBadRequest, ErrValidationFailed, "message too long")
		return
	}

	entModel := &models.EntitlementModel{DB: h.DB}
	ent, err := entModel.Resolve(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	if !ent.CanUseAI() {
		RespondError(c, http.StatusForbidden, ErrForbidden, "AI assistant limit reached for your plan")
		return
	}

	result, err := h.Assistant.Chat(c.Request.Context(), user.ID, ent.Tier, req.Message)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, result)
}

// History returns the thread, chat turns and notifications interleaved
func (h *AssistantHandler) History(c *gin.Context) {
	user := middleware.GetUser(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	msgModel := &models.AssistantMessageModel{DB: h.DB}
	messages, err := msgModel.History(user.ID, limit)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"messages": messages})
}

// Unread returns the unread assistant message count
func (h *AssistantHandler) Unread(c *gin.Context) {
	user := middleware.GetUser(c)
	msgModel := &models.AssistantMessageModel{DB: h.DB}
	unread, err := msgModel.UnreadCount(user.ID)
	if err != nil {
		RespondModelError(c, err)
		return
	}
	RespondData(c, gin.H{"unread": unread})
}

// MarkRead clears the unread state
func (h *AssistantHandler) MarkRead(c *gin.Context) {
	user := middleware.GetUser(c)
	msgModel := &models.AssistantMessageModel{DB: h.DB}
	if err := msgModel.MarkAllRead(user.ID); err != nil {
		RespondModelError(c, err)
		return
	}
	RespondSuccess(c, "Messages marked read")
}
