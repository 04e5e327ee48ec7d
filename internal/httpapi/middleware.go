package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/auth"
	"github.com/gragdev/grag-gateway/internal/token"
)

// Gin context keys for authenticated identities.
const (
	ctxKeyAuthContext = "authContext"
	ctxKeySession     = "sessionClaims"
)

// failJSON writes the uniform error envelope.
func failJSON(c *gin.Context, status int, code, message string, details map[string]any) {
	body := gin.H{"code": code, "message": message}
	if len(details) > 0 {
		body["details"] = details
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": body})
}

// okJSON writes the uniform success envelope.
func okJSON(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// RequireAPIKey authenticates the request with the bearer API key pipeline
// and stores the resolved context for downstream handlers.
func RequireAPIKey(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authCtx, failure := authenticator.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if failure != nil {
			failJSON(c, failure.HTTPStatus(), failure.Code, failure.Message, failure.Detail)
			return
		}
		c.Set(ctxKeyAuthContext, authCtx)
		c.Next()
	}
}

// AuthContextFrom returns the API-key auth context stored by RequireAPIKey.
func AuthContextFrom(c *gin.Context) (*auth.Context, bool) {
	value, ok := c.Get(ctxKeyAuthContext)
	if !ok {
		return nil, false
	}
	authCtx, okCast := value.(*auth.Context)
	return authCtx, okCast
}

// RequireSession authenticates the request with a first-party session token.
// Anything that does not verify as a signed session token, API keys included,
// gets a uniform UNAUTHORIZED.
func RequireSession(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		value := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if value == "" || value == strings.TrimSpace(header) {
			failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		claims := token.Verify(value, jwtSecret)
		if claims == nil {
			failJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}
		c.Set(ctxKeySession, claims)
		c.Next()
	}
}

// SessionFrom returns the session claims stored by RequireSession.
func SessionFrom(c *gin.Context) (*token.Claims, bool) {
	value, ok := c.Get(ctxKeySession)
	if !ok {
		return nil, false
	}
	claims, okCast := value.(*token.Claims)
	return claims, okCast
}
