package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/middleware"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/validation"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/transactions"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/shared/apperr"
)

// TransactionHandler exposes the back-office capture, refund and reversal
// operations.
type TransactionHandler struct {
	Svc    *transactions.Service
	Logger *slog.Logger
}

func NewTransactionHandler(svc *transactions.Service, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{Svc: svc, Logger: logger}
}

type amountRequest struct {
	AmountCents int64 `json:"amountCents" binding:"required,gt=0"`
}

// POST /api/orders/:orderNo/capture
func (h *TransactionHandler) Capture(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request.", validation.FromBindError(err, &req)))
		return
	}
	h.respond(c, h.Svc.Capture(c.Request.Context(), c.Param("orderNo"), req.AmountCents))
}

// POST /api/orders/:orderNo/refund
func (h *TransactionHandler) Refund(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request.", validation.FromBindError(err, &req)))
		return
	}
	h.respond(c, h.Svc.Refund(c.Request.Context(), c.Param("orderNo"), req.AmountCents))
}

// POST /api/orders/:orderNo/reverse
func (h *TransactionHandler) Reverse(c *gin.Context) {
	h.respond(c, h.Svc.Reverse(c.Request.Context(), c.Param("orderNo")))
}

func (h *TransactionHandler) respond(c *gin.Context, res transactions.Result) {
	if res.OK {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	status := http.StatusBadGateway
	switch res.ErrorCode {
	case transactions.ErrCodeOrderNotFound, transactions.ErrCodeTransactionNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"ok": false, "errorCode": res.ErrorCode})
}
