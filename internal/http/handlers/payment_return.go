package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/middleware"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/checkout"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/reconcile"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/shared/apperr"
)

type PaymentReturnHandler struct {
	Svc    *reconcile.PostPaymentService
	States *checkout.StateCodec
	Logger *slog.Logger
}

func NewPaymentReturnHandler(svc *reconcile.PostPaymentService, states *checkout.StateCodec, logger *slog.Logger) *PaymentReturnHandler {
	return &PaymentReturnHandler{Svc: svc, States: states, Logger: logger}
}

// GET /payments/return?resourcePath=...
// Landing endpoint for the shopper coming back from the hosted payment
// page. Reconciles the final provider status against the order and clears
// the correlation cookie; the outcome decides where the storefront routes
// next.
func (h *PaymentReturnHandler) Return(c *gin.Context) {
	resourcePath := c.Query("resourcePath")
	if resourcePath == "" {
		middleware.Fail(c, apperr.InvalidErr("Missing resourcePath.", nil))
		return
	}

	state, _ := h.States.Get(c)
	res := h.Svc.Process(c.Request.Context(), resourcePath, state)
	h.States.Clear(c)

	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"ok":                  res.OK,
		"orderNo":             res.OrderNo,
		"cancelledByCustomer": res.CancelledByCustomer,
	})
}
