package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/middleware"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/shared/apperr"
)

// OrderHandler serves back-office order payment state.
type OrderHandler struct {
	Repo   *orders.Repo
	Logger *slog.Logger
}

func NewOrderHandler(repo *orders.Repo, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{Repo: repo, Logger: logger}
}

// GET /api/orders/:orderNo/payment
func (h *OrderHandler) Payment(c *gin.Context) {
	ctx := c.Request.Context()

	o, err := h.Repo.GetByOrderNo(ctx, c.Param("orderNo"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Order not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	history, err := o.PaymentResponses()
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	resp := gin.H{
		"orderNo":      derefStr(o.OrderNo),
		"status":       o.Status,
		"exportStatus": o.ExportStatus,
		"pending":      o.IsPendingOrder,
		"currency":     o.Currency,
		"totalCents":   o.TotalGrossCents,
		"history":      history,
	}

	_, pt, err := h.Repo.GatewayPayment(ctx, o.ID)
	if err == nil {
		resp["transactionId"] = pt.TransactionID
		resp["stage"] = pt.Stage
		resp["statusFlow"] = pt.StatusFlow
	} else if !errors.Is(err, orders.ErrInstrumentNotFound) {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
