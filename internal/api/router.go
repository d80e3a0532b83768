// Package api exposes the drilling engine over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Setup builds the gin engine with recovery, request logging and all routes
func Setup(log *zap.Logger, svc Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	mistakes := NewMistakeHandler(log, svc)

	group := router.Group("/api/mistakes", RequireUser())
	{
		group.POST("/detections", mistakes.StoreDetections)
		group.POST("/feedback", mistakes.StoreFeedback)
		group.GET("", mistakes.List)
		group.GET("/drill-session", mistakes.DrillSession)
		group.POST("/practice-result", mistakes.PracticeResult)
		group.GET("/statistics", mistakes.Statistics)
		group.GET("/:id", mistakes.Get)
		group.PATCH("/:id", mistakes.Update)
		group.DELETE("/:id", mistakes.Delete)
	}

	return router
}
