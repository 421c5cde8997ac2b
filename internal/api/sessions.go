package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/debashish17/Riverside/internal/auth"
	"github.com/debashish17/Riverside/internal/lifecycle"
	"github.com/debashish17/Riverside/internal/models"
)

type createSessionRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	MaxParticipants int    `json:"maxParticipants"`
}

type sessionIDRequest struct {
	SessionID string `json:"sessionId"`
}

func (h *Handler) createSession(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return
	}

	view, err := h.lifecycle.Create(c.Request.Context(), principal, lifecycle.CreateParams{
		Name:            req.Name,
		Description:     req.Description,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": view,
		"message": "Session created successfully",
	})
}

func (h *Handler) joinSession(c *gin.Context) {
	principal, sessionID, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}
	view, err := h.lifecycle.Join(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": view,
		"message": "Joined session successfully",
	})
}

func (h *Handler) leaveSession(c *gin.Context) {
	principal, sessionID, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}
	view, err := h.lifecycle.Leave(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"action":  lifecycle.ActionLeft,
		"session": view,
		"message": "Left session successfully",
	})
}

func (h *Handler) smartLeaveSession(c *gin.Context) {
	principal, sessionID, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}
	action, view, err := h.lifecycle.SmartLeave(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	message := "Left session successfully"
	if action == lifecycle.ActionTerminated {
		message = "Session terminated successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"action":  action,
		"session": view,
		"message": message,
	})
}

func (h *Handler) endSession(c *gin.Context) {
	principal, sessionID, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}
	view, err := h.lifecycle.End(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": view,
		"message": "Session ended successfully",
	})
}

func (h *Handler) terminateSession(c *gin.Context) {
	principal, sessionID, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}
	view, err := h.lifecycle.Terminate(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": view,
		"message": "Session terminated successfully",
	})
}

func (h *Handler) clearSession(c *gin.Context) {
	principal, sessionID, ok := h.bindSessionRequest(c)
	if !ok {
		return
	}
	if err := h.lifecycle.Clear(c.Request.Context(), principal, sessionID); err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session cleared successfully",
	})
}

func (h *Handler) getSession(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	sessionID, ok := parseSessionID(c, c.Param("sessionId"))
	if !ok {
		return
	}
	view, err := h.lifecycle.Get(c.Request.Context(), principal, sessionID)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": view,
	})
}

func (h *Handler) listMySessions(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	sessions, summary, err := h.lifecycle.ListMine(c.Request.Context(), principal)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"summary":  summary,
	})
}

func (h *Handler) listActiveSessions(c *gin.Context) {
	h.listSessions(c, h.lifecycle.ListActive)
}

func (h *Handler) listRecentSessions(c *gin.Context) {
	h.listSessions(c, h.lifecycle.ListRecent)
}

func (h *Handler) listAllSessions(c *gin.Context) {
	h.listSessions(c, h.lifecycle.ListAll)
}

func (h *Handler) listSessions(c *gin.Context, list func(ctx context.Context, principal models.User) ([]lifecycle.SessionSummary, error)) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	sessions, err := list(c.Request.Context(), principal)
	if err != nil {
		writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// bindSessionRequest extracts the authenticated principal and the sessionId
// from a POST body. The id travels as a string on the wire.
func (h *Handler) bindSessionRequest(c *gin.Context) (models.User, int64, bool) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return models.User{}, 0, false
	}
	var req sessionIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body"})
		return models.User{}, 0, false
	}
	sessionID, ok := parseSessionID(c, req.SessionID)
	if !ok {
		return models.User{}, 0, false
	}
	return principal, sessionID, true
}

func parseSessionID(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Session ID is required"})
		return 0, false
	}
	return id, true
}

// writeLifecycleError maps the lifecycle error taxonomy onto HTTP statuses.
// Unclassified errors become opaque 500s; the detail stays in the log.
func writeLifecycleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch lifecycle.KindOf(err) {
	case lifecycle.KindValidation, lifecycle.KindInvalidState, lifecycle.KindCapacity:
		status = http.StatusBadRequest
		message = err.Error()
	case lifecycle.KindNotFound, lifecycle.KindNotAMember:
		status = http.StatusNotFound
		message = err.Error()
	case lifecycle.KindForbidden:
		status = http.StatusForbidden
		message = err.Error()
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("session operation failed")
	}
	c.JSON(status, gin.H{"success": false, "message": message})
}
