package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/debashish17/Riverside/internal/auth"
)

// serveSessionSocket upgrades an authenticated request into a presence
// connection. Access control runs through the same lifecycle read as the HTTP
// get: only owners and members reach the room.
func (h *Handler) serveSessionSocket(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	sessionID, ok := parseSessionID(c, c.Param("sessionId"))
	if !ok {
		return
	}

	if _, err := h.lifecycle.Get(c.Request.Context(), principal, sessionID); err != nil {
		writeLifecycleError(c, err)
		return
	}

	if err := h.hub.ServeWS(c.Writer, c.Request, principal, sessionID); err != nil {
		log.Warn().Err(err).Int64("session_id", sessionID).Msg("websocket upgrade failed")
	}
}
