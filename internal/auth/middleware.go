package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/debashish17/Riverside/internal/models"
)

const principalContextKey = "auth_principal"

// Middleware validates bearer tokens and stores the authenticated user in the
// context. Besides the Authorization header it accepts a ?token= query
// parameter, because browser websocket handshakes cannot set headers.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := s.extractToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		claims, err := s.ParseToken(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		user, err := s.UserByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		c.Set(principalContextKey, user)
		c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated user set by Middleware.
func PrincipalFromContext(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(*models.User)
	if !ok {
		return models.User{}, false
	}
	return *user, true
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return c.Query("token")
}
