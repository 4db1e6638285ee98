package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	accountIDContextKey = "auth_account_id"
	authTokenContextKey = "auth_token"
)

// Middleware validates session tokens and stores the authenticated account in
// the context.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authToken := s.extractToken(c)
		if authToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		accountID, err := s.ValidateToken(c.Request.Context(), authToken)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(accountIDContextKey, accountID)
		c.Set(authTokenContextKey, authToken)
		c.Next()
	}
}

// AccountIDFromContext retrieves the authenticated account id from the gin context.
func AccountIDFromContext(c *gin.Context) (int64, bool) {
	val, ok := c.Get(accountIDContextKey)
	if !ok {
		return 0, false
	}
	accountID, ok := val.(int64)
	return accountID, ok
}

// AuthTokenFromContext retrieves the bearer token captured by the middleware.
func AuthTokenFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(authTokenContextKey)
	if !ok {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}

func (s *Service) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(s.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		return token
	}
	return ""
}
