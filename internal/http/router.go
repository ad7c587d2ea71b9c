// Package http wires the gin router for the gateway service.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/handlers"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/middleware"
)

// Handlers collects the route handlers the router mounts.
type Handlers struct {
	Checkout      *handlers.CheckoutHandler
	PaymentReturn *handlers.PaymentReturnHandler
	Transactions  *handlers.TransactionHandler
	Wallet        *handlers.WalletHandler
	Orders        *handlers.OrderHandler
}

func NewRouter(logger *slog.Logger, h Handlers) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ErrorHandler(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// Shopper-facing return endpoint, target of the hosted page redirect.
	r.GET("/payments/return", h.PaymentReturn.Return)

	api := r.Group("/api")
	{
		api.POST("/checkout/payments", h.Checkout.HandlePayment)
		api.POST("/checkout/authorize", h.Checkout.Authorize)

		api.GET("/orders/:orderNo/payment", h.Orders.Payment)
		api.POST("/orders/:orderNo/capture", h.Transactions.Capture)
		api.POST("/orders/:orderNo/refund", h.Transactions.Refund)
		api.POST("/orders/:orderNo/reverse", h.Transactions.Reverse)

		api.GET("/wallet/:customerID/cards", h.Wallet.List)
		api.DELETE("/wallet/:customerID/cards/:cardID", h.Wallet.Delete)
		api.POST("/wallet/:customerID/registrations", h.Wallet.BeginRegistration)
		api.GET("/wallet/:customerID/registrations/return", h.Wallet.CompleteRegistration)
	}

	return r
}
