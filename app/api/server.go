package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/feeddigest/feeddigest/app/cfg"
)

// NewServer creates the HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
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
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	api := r.Group("/api")
	{
		api.POST("/crawl", handler.TriggerCrawl)
		api.GET("/summary", handler.GetSummary)
		api.GET("/entries", handler.ListEntries)
		api.GET("/feeds", handler.ListFeeds)
	}

	r.GET("/health", handler.GetHealth)

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service":     "FeedDigest",
			"version":     cfg.GetVersion(),
			"description": "RSS feed ingestion service with keyword tagging and run auditing",
			"endpoints": map[string]string{
				"crawl":   "/api/crawl (POST)",
				"summary": "/api/summary",
				"entries": "/api/entries",
				"feeds":   "/api/feeds",
				"health":  "/health",
			},
		})
	})

	// Return 204 to avoid 404s
	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}
