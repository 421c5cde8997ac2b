package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/debashish17/Riverside/internal/auth"
	"github.com/debashish17/Riverside/internal/recording"
)

// sessionRef pulls the optional session binding out of a multipart form.
func sessionRef(c *gin.Context) (*int64, string) {
	raw := c.PostForm("sessionId")
	if raw == "" {
		return nil, c.PostForm("sessionName")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, c.PostForm("sessionName")
	}
	return &id, c.PostForm("sessionName")
}

func (h *Handler) uploadRecording(c *gin.Context) {
	file, header, err := c.Request.FormFile("recording")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "recording file is required"})
		return
	}
	defer file.Close()

	sessionID, sessionName := sessionRef(c)
	rec, err := h.recordings.Save(c.Request.Context(), file, header.Filename, sessionID, sessionName)
	if err != nil {
		log.Error().Err(err).Msg("recording upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to store recording"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "recording": rec})
}

func (h *Handler) initChunkedUpload(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	var req struct {
		Filename    string `json:"filename"`
		SessionID   *int64 `json:"sessionId"`
		SessionName string `json:"sessionName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "filename is required"})
		return
	}

	uploadID, err := h.recordings.InitChunked(c.Request.Context(), principal.ID, req.Filename, req.SessionID, req.SessionName)
	if err != nil {
		log.Error().Err(err).Msg("chunked upload init failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to start upload"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "uploadId": uploadID})
}

func (h *Handler) appendChunk(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	uploadID := c.Param("uploadId")

	chunk, _, err := c.Request.FormFile("chunk")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "chunk is required"})
		return
	}
	defer chunk.Close()

	written, err := h.recordings.AppendChunk(c.Request.Context(), principal.ID, uploadID, chunk)
	if err != nil {
		if recording.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Upload not found or expired"})
			return
		}
		log.Error().Err(err).Str("upload_id", uploadID).Msg("chunk append failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to store chunk"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bytes": written})
}

func (h *Handler) completeChunkedUpload(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	uploadID := c.Param("uploadId")

	rec, err := h.recordings.CompleteChunked(c.Request.Context(), principal.ID, uploadID)
	if err != nil {
		if recording.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Upload not found or expired"})
			return
		}
		log.Error().Err(err).Str("upload_id", uploadID).Msg("chunked upload completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to finalize upload"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "recording": rec})
}

func (h *Handler) listRecordings(c *gin.Context) {
	var sessionID *int64
	if raw := c.Query("sessionId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid sessionId"})
			return
		}
		sessionID = &id
	}

	recordings, err := h.recordings.List(c.Request.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Msg("list recordings failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to list recordings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "recordings": recordings, "total": len(recordings)})
}
