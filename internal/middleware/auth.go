package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"eduhub-chat/internal/auth"
)

const (
	UserIDKey   = "userID"
	UsernameKey = "username"
)

// Verifier validates a bearer token.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// RequireIdentity validates the Authorization header and stores the caller's
// id and display name on the context.
func RequireIdentity(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Next()
	}
}

// OptionalIdentity attaches the caller's identity when a valid bearer token
// is present and lets anonymous requests through.
func OptionalIdentity(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c.GetHeader("Authorization")); token != "" {
			if claims, err := verifier.Verify(token); err == nil {
				c.Set(UserIDKey, claims.UserID)
				c.Set(UsernameKey, claims.Username)
			}
		}
		c.Next()
	}
}

// BearerToken extracts the raw token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
