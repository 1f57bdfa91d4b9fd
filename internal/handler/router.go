package handler

import (
	"net/http"

	"storefront-checkout/internal/database"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(
	orderHandler *OrderHandler,
	webhookHandler *WebhookHandler,
	dbService database.Service,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, dbService.Health())
	})

	api := r.Group("/api")
	{
		api.POST("/checkout", orderHandler.Checkout)
		api.GET("/orders/:id", orderHandler.GetOrder)
		api.GET("/orders/number/:orderNumber", orderHandler.GetOrderByNumber)

		admin := api.Group("/admin")
		{
			admin.POST("/orders/:id/ship", orderHandler.Ship)
			admin.POST("/orders/:id/deliver", orderHandler.Deliver)
			admin.POST("/orders/:id/refund", orderHandler.Refund)
			admin.POST("/orders/:id/cancel", orderHandler.Cancel)
		}
	}

	r.POST("/webhooks/fastpay", webhookHandler.Handle)

	return r
}
