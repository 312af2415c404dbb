package handler

import (
	"net/http"
	"time"

	"github.com/arjunpratapdas/contractiq/config"
	"github.com/arjunpratapdas/contractiq/middleware"
	"github.com/arjunpratapdas/contractiq/pkg/logger"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	tools     *service.ToolsService
	config    *config.SessionConfig
	signToken func(sessionID string, cfg *config.SessionConfig) (string, time.Time, error)
}

func NewSessionHandler(tools *service.ToolsService, cfg *config.SessionConfig) *SessionHandler {
	return &SessionHandler{tools: tools, config: cfg, signToken: middleware.GenerateToken}
}

type CreateSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Create starts a visitor session and returns its token
func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.tools.CreateSession(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	token, expiresAt, err := h.signToken(session.ID, h.config)
	if err != nil {
		if endErr := h.tools.EndSession(c.Request.Context(), session.ID); endErr != nil {
			logger.Warn(c.Request.Context(), "failed to end session after token error", "session_id", session.ID, "error", endErr)
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreateSessionResponse{
		Success:   true,
		SessionID: session.ID,
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// Get returns the session snapshot
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.tools.Session(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": session})
}

// Delete ends the session
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.tools.EndSession(c.Request.Context(), middleware.GetSessionID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session ended"})
}

// UpdateForm applies changed form fields
func (h *SessionHandler) UpdateForm(c *gin.Context) {
	var update service.FormUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	session, err := h.tools.UpdateForm(c.Request.Context(), middleware.GetSessionID(c), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"session":      session,
		"jurisdiction": service.Resolve(session.Form.Country, session.Form.Subdivision, session.Form.ProjectLocation),
	})
}
