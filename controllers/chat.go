package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/voyahq/voya-agent/memory"
	"github.com/voyahq/voya-agent/models"
)

// Responder is the external conversational agent invoked once per chat
// request. The history it receives already ends with the user's latest
// message.
type Responder interface {
	Respond(ctx context.Context, history []models.Message) (content string, metadata map[string]interface{}, err error)
}

type ChatController struct {
	store        *memory.Store
	agent        Responder
	historyLimit int
	logger       *slog.Logger
}

func NewChatController(store *memory.Store, agent Responder, historyLimit int) *ChatController {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &ChatController{
		store:        store,
		agent:        agent,
		historyLimit: historyLimit,
		logger:       slog.Default(),
	}
}

type chatRequest struct {
	Input     string `json:"input" binding:"required,max=2000"`
	SessionID string `json:"session_id"`
}

// Chat handles one turn: resolve the session's conversation, persist the
// user message, invoke the agent with the session history and persist its
// reply. The user message stays durable even when the agent call fails.
func (cc *ChatController) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortValidation(c, "input is required and must be at most 2000 characters")
		return
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		abortValidation(c, "input cannot be empty")
		return
	}

	ctx := c.Request.Context()
	conv, err := cc.store.Resolve(ctx, req.SessionID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if _, err := cc.store.Append(ctx, conv.ID, models.RoleUser, input, nil); err != nil {
		abortWithError(c, err)
		return
	}

	history, err := cc.store.History(ctx, conv.SessionID, cc.historyLimit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	output, meta, err := cc.agent.Respond(ctx, history)
	if err != nil {
		cc.logger.Error("Agent invocation failed", "sessionID", conv.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "agent_error",
			"message":    "the assistant is temporarily unavailable; your message was saved",
			"session_id": conv.SessionID,
		})
		return
	}

	reply, err := cc.store.Append(ctx, conv.ID, models.RoleAssistant, output, meta)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"output":     output,
		"success":    true,
		"session_id": conv.SessionID,
		"message_id": reply.ID,
	})
}
