package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/debashish17/Riverside/internal/auth"
	"github.com/debashish17/Riverside/internal/lifecycle"
	"github.com/debashish17/Riverside/internal/observability"
	"github.com/debashish17/Riverside/internal/presence"
	"github.com/debashish17/Riverside/internal/recording"
)

// Handler wires HTTP routes to the auth, lifecycle, presence, and recording
// services.
type Handler struct {
	auth       *auth.Service
	lifecycle  *lifecycle.Service
	recordings *recording.Service
	hub        *presence.Hub
}

// NewHandler constructs a Handler instance. recordings and hub may be nil in
// tests that only exercise the session surface.
func NewHandler(authService *auth.Service, lifecycleService *lifecycle.Service, recordingService *recording.Service, hub *presence.Hub) *Handler {
	return &Handler{
		auth:       authService,
		lifecycle:  lifecycleService,
		recordings: recordingService,
		hub:        hub,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
	})
	router.GET("/metrics", gin.WrapH(observability.Handler()))

	api := router.Group("/api")
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)

	authMW := h.auth.Middleware()
	api.GET("/user/me", authMW, h.me)

	session := api.Group("/session")
	session.Use(authMW)
	session.POST("/create", h.createSession)
	session.POST("/join", h.joinSession)
	session.POST("/leave", h.leaveSession)
	session.POST("/smart-leave", h.smartLeaveSession)
	session.GET("/my", h.listMySessions)
	session.GET("/active", h.listActiveSessions)
	session.GET("/recent", h.listRecentSessions)
	session.GET("/all", h.listAllSessions)
	session.POST("/end", h.endSession)
	session.POST("/terminate", h.terminateSession)
	session.POST("/clear", h.clearSession)
	session.GET("/:sessionId", h.getSession)

	if h.hub != nil {
		api.GET("/ws/session/:sessionId", authMW, h.serveSessionSocket)
	}

	if h.recordings != nil {
		rec := api.Group("/recordings")
		rec.Use(authMW)
		rec.GET("", h.listRecordings)
		rec.POST("/upload", h.uploadRecording)
		rec.POST("/chunk/init", h.initChunkedUpload)
		rec.POST("/chunk/:uploadId", h.appendChunk)
		rec.POST("/chunk/:uploadId/complete", h.completeChunkedUpload)
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
		"token":    token,
	})
}

func (h *Handler) me(c *gin.Context) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	c.JSON(http.StatusOK, principal)
}
