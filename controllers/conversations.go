package controllers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voyahq/voya-agent/memory"
	"github.com/voyahq/voya-agent/models"
)

type ConversationController struct {
	store  *memory.Store
	logger *slog.Logger
}

func NewConversationController(store *memory.Store) *ConversationController {
	return &ConversationController{store: store, logger: slog.Default()}
}

// Create starts a new conversation under a freshly generated session id.
func (cc *ConversationController) Create(c *gin.Context) {
	conv, err := cc.store.CreateNew(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"conversation": gin.H{
			"id":         conv.ID,
			"session_id": conv.SessionID,
			"title":      conv.Title,
			"created_at": conv.CreatedAt,
		},
	})
}

// List returns conversation summaries, most-recently-updated first. With a
// session_id query parameter it returns that session's full conversation
// instead.
func (cc *ConversationController) List(c *gin.Context) {
	ctx := c.Request.Context()

	if sessionID := c.Query("session_id"); sessionID != "" {
		conv, err := cc.store.GetBySession(ctx, sessionID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conversationDetail(conv)})
		return
	}

	limit := intQuery(c, "limit", 20)
	summaries, err := cc.store.List(ctx, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"conversations": summaries,
		"total":         len(summaries),
	})
}

// Search filters conversations by message content and/or session id.
func (cc *ConversationController) Search(c *gin.Context) {
	query := c.Query("query")
	sessionID := c.Query("session_id")
	limit := intQuery(c, "limit", 10)

	summaries, err := cc.store.Search(c.Request.Context(), query, sessionID, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"conversations": summaries,
		"total":         len(summaries),
		"query":         query,
		"session_id":    sessionID,
	})
}

// Detail returns one conversation with its full ordered message list.
func (cc *ConversationController) Detail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	conv, err := cc.store.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversation": conversationDetail(conv)})
}

type updateRequest struct {
	Title *string `json:"title"`
}

// Update overwrites the conversation title. An empty title is accepted and
// clears it, re-enabling title auto-generation.
func (cc *ConversationController) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == nil {
		abortValidation(c, "title field is required")
		return
	}

	conv, err := cc.store.UpdateTitle(c.Request.Context(), id, *req.Title)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"conversation": gin.H{
			"id":         conv.ID,
			"session_id": conv.SessionID,
			"title":      conv.Title,
			"updated_at": conv.UpdatedAt,
		},
	})
}

// Delete removes a conversation and all its messages.
func (cc *ConversationController) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := cc.store.Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation deleted"})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortValidation(c, "conversation id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func conversationDetail(conv *models.Conversation) gin.H {
	messages := make([]gin.H, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		messages = append(messages, gin.H{
			"id":        m.ID,
			"role":      m.Role,
			"content":   m.Content,
			"timestamp": m.Timestamp,
			"metadata":  m.Metadata,
		})
	}
	return gin.H{
		"id":         conv.ID,
		"session_id": conv.SessionID,
		"title":      conv.Title,
		"created_at": conv.CreatedAt,
		"updated_at": conv.UpdatedAt,
		"messages":   messages,
	}
}
