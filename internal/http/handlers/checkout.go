package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/middleware"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/validation"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/checkout"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/shared/apperr"
)

type CheckoutHandler struct {
	Svc    *checkout.Service
	States *checkout.StateCodec
	Logger *slog.Logger
}

func NewCheckoutHandler(svc *checkout.Service, states *checkout.StateCodec, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{Svc: svc, States: states, Logger: logger}
}

type handlePaymentRequest struct {
	BasketID        string `json:"basketId" binding:"required,uuid"`
	PaymentMethodID string `json:"paymentMethodId" binding:"required"`
}

// POST /api/checkout/payments
// Attaches the gateway payment instrument to the basket and opens a
// checkout session with the provider.
func (h *CheckoutHandler) HandlePayment(c *gin.Context) {
	var req handlePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request.", validation.FromBindError(err, &req)))
		return
	}

	state, _ := h.States.Get(c)
	res, err := h.Svc.Handle(c.Request.Context(), req.BasketID, req.PaymentMethodID, &state)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			middleware.Fail(c, apperr.NotFoundErr("Basket not found."))
		case errors.Is(err, checkout.ErrNotABasket):
			middleware.Fail(c, apperr.ConflictErr("Order is already placed."))
		default:
			middleware.Fail(c, apperr.Wrap(err))
		}
		return
	}
	h.States.Set(c, state)

	if res.Error {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     true,
			"errorCode": state.ErrorCode,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"error":      false,
		"checkoutId": res.CheckoutID,
	})
}

type authorizeRequest struct {
	OrderNo string `json:"orderNo" binding:"required"`
}

// POST /api/checkout/authorize
// Runs the authorization step for a placed order. A hostedCheckout
// response tells the storefront to send the shopper to the payment page
// and resume via the return endpoint.
func (h *CheckoutHandler) Authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request.", validation.FromBindError(err, &req)))
		return
	}

	state, _ := h.States.Get(c)
	res, err := h.Svc.Authorize(c.Request.Context(), req.OrderNo, &state)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
		case errors.Is(err, checkout.ErrNotAuthorizable):
			middleware.Fail(c, apperr.ConflictErr("Order is not in an authorizable state."))
		default:
			middleware.Fail(c, apperr.Wrap(err))
		}
		return
	}
	h.States.Set(c, state)

	if res.Error {
		c.JSON(http.StatusBadGateway, gin.H{"error": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"error":          false,
		"authorized":     res.Authorized,
		"hostedCheckout": res.HostedCheckout,
		"checkoutId":     state.CheckoutID,
	})
}
