package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/health", h.Health)

	r.POST("/orders", h.CreateOrder)
	r.GET("/orders/:orderId", h.OrderStatus)
	r.GET("/orders/:orderId/transitions", h.OrderTransitions)
	r.POST("/orders/:orderId/cancel", h.CancelOrder)

	checkout := r.Group("/checkout")
	{
		checkout.GET("/unknown", h.Unknown)
		checkout.GET("/success/:orderId", h.Landing)
		checkout.GET("/failure/:orderId", h.Landing)
		checkout.GET("/pending/:orderId", h.Landing)
		// Wallet-style flows land keyed by external_reference instead.
		checkout.GET("/failure", h.Landing)
		checkout.GET("/pending", h.Landing)
		checkout.GET("/:trackingNumber", h.Checkout)
	}

	r.GET("/callbacks/gateway", h.GatewayCallback)
	r.POST("/callbacks/gateway", h.GatewayCallback)

	return r
}
