package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/middleware"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/http/validation"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/wallet"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/shared/apperr"
)

type WalletHandler struct {
	Svc    *wallet.Service
	Logger *slog.Logger
}

func NewWalletHandler(svc *wallet.Service, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{Svc: svc, Logger: logger}
}

type storedCardResponse struct {
	ID           string `json:"id"`
	Holder       string `json:"holder"`
	MaskedNumber string `json:"maskedNumber"`
	ExpiryMonth  string `json:"expiryMonth"`
	ExpiryYear   string `json:"expiryYear"`
	Brand        string `json:"brand"`
}

func toCardResponse(c wallet.StoredCard) storedCardResponse {
	return storedCardResponse{
		ID:           c.ID,
		Holder:       c.Holder,
		MaskedNumber: c.MaskedNumber,
		ExpiryMonth:  c.ExpiryMonth,
		ExpiryYear:   c.ExpiryYear,
		Brand:        c.Brand,
	}
}

// GET /api/wallet/:customerID/cards
func (h *WalletHandler) List(c *gin.Context) {
	cards, err := h.Svc.List(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	out := make([]storedCardResponse, 0, len(cards))
	for _, card := range cards {
		out = append(out, toCardResponse(card))
	}
	c.JSON(http.StatusOK, gin.H{"cards": out})
}

type beginRegistrationRequest struct {
	Email     string `json:"email" binding:"required,email"`
	GivenName string `json:"givenName"`
	Surname   string `json:"surname"`
	Phone     string `json:"phone"`
}

// POST /api/wallet/:customerID/registrations
// Opens a standalone tokenization session; the storefront renders the
// registration widget with the returned checkout ID.
func (h *WalletHandler) BeginRegistration(c *gin.Context) {
	var req beginRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid request.", validation.FromBindError(err, &req)))
		return
	}

	checkoutID, err := h.Svc.BeginRegistration(c.Request.Context(), aci.Customer{
		ID:        c.Param("customerID"),
		Email:     req.Email,
		GivenName: req.GivenName,
		Surname:   req.Surname,
		Phone:     req.Phone,
	})
	if err != nil {
		middleware.Fail(c, apperr.UpstreamErr("Card registration could not be started.", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkoutId": checkoutID})
}

// GET /api/wallet/:customerID/registrations/return?resourcePath=...
func (h *WalletHandler) CompleteRegistration(c *gin.Context) {
	resourcePath := c.Query("resourcePath")
	if resourcePath == "" {
		middleware.Fail(c, apperr.InvalidErr("Missing resourcePath.", nil))
		return
	}

	card, err := h.Svc.CompleteRegistration(c.Request.Context(), c.Param("customerID"), resourcePath)
	if err != nil {
		middleware.Fail(c, apperr.UpstreamErr("Card registration failed.", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": toCardResponse(card)})
}

// DELETE /api/wallet/:customerID/cards/:cardID
func (h *WalletHandler) Delete(c *gin.Context) {
	err := h.Svc.Delete(c.Request.Context(), c.Param("customerID"), c.Param("cardID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Card not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
