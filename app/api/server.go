package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler, apiAccessKey string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
		SkipPaths: []string{"/health"},
	}))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	setupRoutes(r, handler, apiAccessKey)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey string) {
	r.GET("/", handler.GetIndex)
	r.GET("/health", handler.GetHealth)
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	api := r.Group("/api")
	{
		api.GET("/content", handler.APIListContent)
		api.GET("/content/:slug", handler.APIGetContent)
		api.GET("/feeds", handler.APIListFeeds)
		api.GET("/feeds/:name", handler.APIGetFeedDetails)
		api.GET("/feeds/:name/runs", handler.APIListRuns)
	}

	admin := r.Group("/api")
	if apiAccessKey != "" {
		admin.Use(authMiddleware(apiAccessKey))
		slog.Info("Sync endpoints require authentication", "header", "X-API-Key")
	} else {
		slog.Warn("Sync endpoints are unauthenticated (API_ACCESS_KEY not set)")
	}
	{
		admin.POST("/sync", handler.APISyncAll)
		admin.POST("/feeds/:name/sync", handler.APISyncFeed)
		admin.POST("/feeds/:name/reload", handler.APIReloadFeed)
	}
}

// corsMiddleware lets the website's admin page call the API from the
// browser. Preflight requests are answered directly.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiAccessKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			return
		}

		c.Next()
	}
}
