package checkout

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
)

// MethodCreditCard is the payment method ID for card payments; saved-card
// tokens are only offered for it.
const MethodCreditCard = "CREDIT_CARD"

// statusFlowInitialized is the first entry of every transaction status flow.
const statusFlowInitialized = "INITIALIZED"

// Gateway is the slice of the ACI client the orchestrator needs.
type Gateway interface {
	PrepareCheckout(ctx context.Context, co aci.CheckoutOrder) aci.CallResult
	UpdateCheckout(ctx context.Context, co aci.CheckoutOrder, checkoutID string) aci.CallResult
}

// SavedTokens supplies the shopper's stored-card registration IDs.
type SavedTokens interface {
	RegistrationIDs(ctx context.Context, customerID string) ([]string, error)
}

// Service drives the per-order authorize flow of hosted checkout.
type Service struct {
	repo   *orders.Repo
	gw     Gateway
	tokens SavedTokens // nil when card registration is disabled
	logger *slog.Logger
}

func NewService(repo *orders.Repo, gw Gateway, tokens SavedTokens) *Service {
	return &Service{repo: repo, gw: gw, tokens: tokens, logger: slog.Default()}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }

type HandleResult struct {
	Error      bool
	CheckoutID string
}

// Handle is the payment-processor hook called when the shopper selects the
// gateway payment method. It replaces any previously attached gateway
// instrument, clears the basket's checkout session and prepares a new one.
// Creating a new session invalidates the prior one.
func (s *Service) Handle(ctx context.Context, basketID, paymentMethodID string, state *CorrelationState) (HandleResult, error) {
	var basket orders.Order
	var items []orders.OrderItem

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		o, err := orders.LockOrderTx(ctx, tx, basketID)
		if err != nil {
			return err
		}
		if o.Status != orders.StatusBasket {
			return ErrNotABasket
		}

		// the instrument is sized at the non-gift-certificate amount
		payable := o.TotalGrossCents - o.GiftCertCents
		if _, _, err := orders.ReplaceInstrumentTx(ctx, tx, o.ID, paymentMethodID, o.Currency, payable); err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ?", o.ID).
			Updates(map[string]any{"checkout_id": nil, "updated_at": time.Now()}).Error; err != nil {
			return err
		}
		o.CheckoutID = nil
		basket = o
		return nil
	})
	if err != nil {
		return HandleResult{Error: true}, err
	}

	if items, err = s.repo.GetItems(ctx, basket.ID); err != nil {
		return HandleResult{Error: true}, err
	}

	// provider call outside the transaction
	res := s.gw.PrepareCheckout(ctx, s.checkoutOrder(ctx, basket, items, paymentMethodID))
	if !res.OK || res.Object.ID == "" {
		s.logger.Error("prepare checkout failed",
			"basket_id", basket.ID, "error_code", res.ErrorCode, "err", res.ErrorMessage)
		state.ErrorCode = ErrCodeGeneral
		return HandleResult{Error: true}, nil
	}

	checkoutID := res.Object.ID
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ?", basket.ID).
			Updates(map[string]any{"checkout_id": checkoutID, "updated_at": time.Now()}).Error; err != nil {
			return err
		}

		_, pt, err := orders.GatewayPaymentTx(ctx, tx, basket.ID)
		if err != nil {
			return err
		}
		pt.AppendStatusFlow(statusFlowInitialized)
		return tx.WithContext(ctx).Model(&orders.PaymentTransaction{}).
			Where("id = ?", pt.ID).
			Updates(map[string]any{
				"status_flow": pt.StatusFlow,
				"stage":       orders.StageInitialized,
				"updated_at":  time.Now(),
			}).Error
	})
	if err != nil {
		return HandleResult{Error: true}, err
	}

	state.CheckoutID = checkoutID
	return HandleResult{CheckoutID: checkoutID}, nil
}

type AuthorizeResult struct {
	Error      bool
	Authorized bool

	// HostedCheckout signals the caller to redirect the shopper to the
	// provider's hosted page. A control transfer, not an error: the
	// order-placement pipeline suspends here and resumes on return.
	HostedCheckout bool
}

// Authorize is called by the order-placement pipeline after the order row
// exists. The transaction's explicit stage decides the branch: an
// initialized transaction updates the checkout session and requests the
// redirect; a resolved one (the reconciler already decided the order's
// fate) simply reports authorized.
func (s *Service) Authorize(ctx context.Context, orderNo string, state *CorrelationState) (AuthorizeResult, error) {
	o, err := s.repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return AuthorizeResult{Error: true}, err
	}
	pi, pt, err := s.repo.GatewayPayment(ctx, o.ID)
	if err != nil {
		return AuthorizeResult{Error: true}, err
	}

	switch pt.Stage {
	case orders.StageResolved:
		return AuthorizeResult{Authorized: true}, nil

	case orders.StageInitialized:
		if o.CheckoutID == nil || *o.CheckoutID == "" {
			return AuthorizeResult{Error: true}, ErrCheckoutNotReady
		}

		items, err := s.repo.GetItems(ctx, o.ID)
		if err != nil {
			return AuthorizeResult{Error: true}, err
		}

		res := s.gw.UpdateCheckout(ctx, s.checkoutOrder(ctx, o, items, pi.PaymentMethod), *o.CheckoutID)
		if !res.OK {
			s.logger.Error("update checkout failed",
				"order_no", orderNo, "error_code", res.ErrorCode, "err", res.ErrorMessage)
			state.ErrorCode = ErrCodeGeneral
			if err := s.failOrder(ctx, &o, "ACI service error during checkout update"); err != nil {
				s.logger.Error("failing order failed", "order_no", orderNo, "err", err)
			}
			return AuthorizeResult{Error: true}, nil
		}

		err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.WithContext(ctx).Model(&orders.PaymentTransaction{}).
				Where("id = ?", pt.ID).
				Updates(map[string]any{
					"stage":      orders.StageAwaitingRedirect,
					"updated_at": time.Now(),
				}).Error
		})
		if err != nil {
			return AuthorizeResult{Error: true}, err
		}

		state.CheckoutID = *o.CheckoutID
		state.OrderNo = orderNo
		return AuthorizeResult{HostedCheckout: true}, nil

	default:
		// awaiting_redirect without a reconciler verdict, or never prepared
		return AuthorizeResult{Error: true}, ErrNotAuthorizable
	}
}

func (s *Service) failOrder(ctx context.Context, o *orders.Order, reason string) error {
	return s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		return orders.FailOrderTx(ctx, tx, o, reason)
	})
}

// checkoutOrder builds the immutable payload snapshot for the attempt.
func (s *Service) checkoutOrder(ctx context.Context, o orders.Order, items []orders.OrderItem, paymentMethod string) aci.CheckoutOrder {
	status := "EXISTING"
	if !o.Registered {
		status = "NEW"
	}

	// the charged amount excludes what gift certificates cover; the item
	// sums still reflect the full basket, so the difference surfaces as a
	// cart.payments reconciliation entry
	co := aci.CheckoutOrder{
		AmountCents: o.TotalGrossCents - o.GiftCertCents,
		Currency:    o.Currency,
		Customer: aci.Customer{
			ID:        o.CustomerID,
			GivenName: o.CustomerFirstName,
			Surname:   o.CustomerLastName,
			Phone:     o.CustomerPhone,
			Email:     o.CustomerEmail,
			IP:        o.CustomerRemoteIP,
			Status:    status,
		},
		Billing:            address(o.Billing),
		Shipping:           address(o.Shipping),
		ShippingMethod:     o.ShippingMethod,
		ShippingGrossCents: o.ShippingGrossCents,
	}
	if o.OrderNo != nil {
		co.OrderNo = *o.OrderNo
	}

	for _, it := range items {
		co.Items = append(co.Items, aci.LineItem{
			Name:        it.Name,
			MerchantID:  strconv.Itoa(it.Position),
			SKU:         it.SKU,
			Description: it.Description,
			Quantity:    it.Quantity,
			GrossMicros: it.AdjustedGrossMicros,
			NetMicros:   it.AdjustedNetMicros,
		})
	}

	if s.tokens != nil && o.Registered && paymentMethod == MethodCreditCard {
		ids, err := s.tokens.RegistrationIDs(ctx, o.CustomerID)
		if err != nil {
			s.logger.Warn("loading saved cards failed", "customer_id", o.CustomerID, "err", err)
		} else {
			co.SavedRegistrationIDs = ids
		}
	}
	return co
}

func address(a orders.Address) aci.Address {
	return aci.Address{
		Street1:   a.Street1,
		Street2:   a.Street2,
		City:      a.City,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.Phone,
	}
}
