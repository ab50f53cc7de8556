package handler

import (
	"context"
	"errors"
	"net/http"

	"engagement-engine/internal/conversation"
	"engagement-engine/internal/model"
	"engagement-engine/internal/service"
	"engagement-engine/internal/utils"
	"engagement-engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// Register mounts the chat routes on rg, normally the /api/chat group.
func (h *ChatHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/message", h.SendMessage)
	rg.POST("/stream", h.StreamChat)
	rg.POST("/session", h.CreateSession)
	rg.POST("/session/list", h.GetSessionList)
	rg.GET("/session/del/:session_id", h.DeleteSession)
	rg.POST("/session/clear", h.ClearAllSessions)
	rg.GET("/session/:session_id", h.GetSession)
	rg.PUT("/session/:session_id", h.UpdateSessionTitle)
	rg.POST("/session/:session_id/reset", h.ResetSession)
	rg.GET("/messages/:session_id", h.GetMessages)
	rg.GET("/greeting", h.Greeting)
	rg.GET("/suggestions", h.Suggestions)
}

func statusFor(err error) int {
	if errors.Is(err, service.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func sessionResponse(sess *conversation.Session) model.SessionResponse {
	return model.SessionResponse{
		SessionID:          sess.ID(),
		Title:              sess.Title(),
		CreatedAt:          sess.CreatedAt(),
		UpdatedAt:          sess.UpdatedAt(),
		MessageCount:       sess.MessageCount(),
		IsTyping:           sess.IsTyping(),
		SuggestedQuestions: sess.Suggestions(),
	}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.chatService.SendMessage(c.Request.Context(), req.SessionID, req.Content)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.WithFields(logger.Fields{"session_id": req.SessionID}).Debug("client went away before reply")
			return
		}
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		SessionID:          req.SessionID,
		Message:            resp.Message,
		SuggestedQuestions: resp.SuggestedQuestions,
	})
}

// StreamChat runs one turn over SSE: a typing event as soon as the user
// message is accepted, then the reply and the new suggestions.
func (h *ChatHandler) StreamChat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.chatService.GetSession(req.SessionID); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	sseWriter := utils.NewSSEWriter(c.Writer)
	if err := sseWriter.WriteJSON("typing", gin.H{"session_id": req.SessionID, "is_typing": true}); err != nil {
		logger.Errorf("Failed to write SSE: %v", err)
		return
	}

	resp, err := h.chatService.SendMessage(c.Request.Context(), req.SessionID, req.Content)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			sseWriter.WriteJSON("error", gin.H{"error": err.Error()})
		}
		sseWriter.Close()
		return
	}

	if resp.Message != nil {
		if err := sseWriter.WriteJSON("message", resp.Message); err != nil {
			logger.Errorf("Failed to write SSE: %v", err)
			return
		}
	}
	sseWriter.WriteJSON("suggestions", gin.H{
		"session_id":          req.SessionID,
		"suggested_questions": resp.SuggestedQuestions,
	})
	sseWriter.Close()
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	// an empty body is fine, the service picks a title
	_ = c.ShouldBindJSON(&req)

	sess, err := h.chatService.CreateSession(req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":  sessionResponse(sess),
		"messages": sess.Messages(),
	})
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	sess, err := h.chatService.GetSession(c.Param("session_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sessionResponse(sess))
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	messages, err := h.chatService.GetSessionMessages(sessionID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	sessions, err := h.chatService.ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
	})
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	if err := h.chatService.DeleteSession(c.Param("session_id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *ChatHandler) ClearAllSessions(c *gin.Context) {
	if err := h.chatService.ClearAllSessions(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All sessions cleared successfully"})
}

func (h *ChatHandler) ResetSession(c *gin.Context) {
	sess, err := h.chatService.ResetSession(c.Param("session_id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":  sessionResponse(sess),
		"messages": sess.Messages(),
	})
}

func (h *ChatHandler) UpdateSessionTitle(c *gin.Context) {
	var req model.UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.UpdateSessionTitle(c.Param("session_id"), req.Title); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Title updated successfully"})
}

func (h *ChatHandler) Greeting(c *gin.Context) {
	c.JSON(http.StatusOK, h.chatService.Greeting())
}

func (h *ChatHandler) Suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggested_questions": h.chatService.Suggestions()})
}
