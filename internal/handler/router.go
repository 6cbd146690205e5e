package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/dreamlog/internal/middleware"
	"github.com/xxxsen/dreamlog/internal/pkg/response"
)

type RouterDeps struct {
	Dreams          *DreamHandler
	CreateRateLimit time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})
	api.POST("/dreams", middleware.RateLimit(deps.CreateRateLimit), deps.Dreams.Create)
	api.GET("/dreams", deps.Dreams.List)
	api.GET("/dreams/stats/:date", deps.Dreams.Stats)
	api.GET("/dreams/:id", deps.Dreams.Get)
}
