package rest

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler) {
	// Health check endpoint (no version prefix)
	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/collections/:id", handler.GetCollection)
		v1.GET("/nfts/:id", handler.GetNft)
		v1.GET("/accounts/:id/balances", handler.ListAccountBalances)
		v1.GET("/markets/:id", handler.GetMarket)
		v1.GET("/markets/:id/orders", handler.ListMarketOrders)
	}
}
