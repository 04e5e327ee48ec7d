package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gragdev/grag-gateway/internal/auth"
	log "github.com/sirupsen/logrus"
)

// BuildRouter assembles the gin engine: public account endpoints, the
// session-guarded management surface, and the API-key-guarded query surface.
func BuildRouter(h *Handlers, authenticator *auth.Authenticator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.POST("/auth/register", h.Register)
	engine.POST("/auth/login", h.Login)
	engine.GET("/plans", h.ListPlans)

	session := engine.Group("/", RequireSession(h.jwt.Secret))
	{
		session.POST("/connections", h.CreateConnection)
		session.GET("/connections", h.ListConnections)
		session.DELETE("/connections/:id", h.DeleteConnection)

		session.POST("/keys", h.CreateAPIKey)
		session.GET("/keys", h.ListAPIKeys)
		session.DELETE("/keys/:id", h.RevokeAPIKey)

		session.GET("/usage", h.GetUsage)

		session.GET("/user/profile", h.GetProfile)
		session.PUT("/user/password", h.ChangePassword)

		admin := session.Group("/admin", h.RequireAdmin)
		{
			admin.GET("/stats", h.AdminStats)
			admin.GET("/users", h.AdminListUsers)
			admin.PUT("/users/:id/plan", h.AdminUpdateUserPlan)
			admin.PUT("/users/:id/status", h.AdminUpdateUserStatus)
		}
	}

	v1 := engine.Group("/v1", RequireAPIKey(authenticator))
	{
		v1.POST("/query", h.Query)
	}

	return engine
}

// requestLogger logs one line per request with latency and status.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("request")
	}
}
