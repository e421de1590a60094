package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gemmachat/internal/app"
	"gemmachat/internal/model"
	"gemmachat/internal/transport/http/response"
)

const (
	ContextUserKey  = "auth_user"
	ContextTokenKey = "auth_token"
)

// SessionAuth extracts the bearer token and resolves it through the session
// manager. Failures are reported generically: the caller never learns which
// of the checks rejected the token.
func SessionAuth(authService *app.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization header")
			c.Abort()
			return
		}

		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			response.Error(c, http.StatusUnauthorized, "invalid authorization scheme")
			c.Abort()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		user, err := authService.Authenticate(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired session")
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

// UserFromContext retrieves the authenticated user stored by SessionAuth.
func UserFromContext(c *gin.Context) (*model.User, bool) {
	val, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := val.(*model.User)
	return user, ok
}

// TokenFromContext retrieves the raw bearer token captured by SessionAuth.
func TokenFromContext(c *gin.Context) (string, bool) {
	val, exists := c.Get(ContextTokenKey)
	if !exists {
		return "", false
	}
	token, ok := val.(string)
	return token, ok
}
