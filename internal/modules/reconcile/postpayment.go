package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/checkout"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/transactions"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/wallet"
)

// Validation error codes of the shopper-return flow, in check order.
const (
	ErrCodeSessionInvalid       = "SESSION_INVALID"
	ErrCodeServiceError         = "ACI_SERVICE_ERROR"
	ErrCodeRejected             = "TRANSACTION_REJECTED"
	ErrCodeCancelledByCustomer  = "CANCELLED_BY_CUSTOMER"
	ErrCodeTransactionIDMissing = "TRANSACTIONID_MISSING"
	ErrCodeSessionOrderMismatch = "SESSION_ORDER_MISMATCH"
)

var failReasons = map[string]string{
	ErrCodeSessionInvalid:       "Storefront session expired",
	ErrCodeServiceError:         "ACI service error",
	ErrCodeRejected:             "Payment was rejected by ACI",
	ErrCodeCancelledByCustomer:  "Payment was cancelled by customer",
	ErrCodeSessionOrderMismatch: "Session order mismatch. Probably due to multiple orders being placed in parallel",
	ErrCodeTransactionIDMissing: "Transaction ID missing",
}

// StatusGateway fetches the final payment status for a redirect return.
type StatusGateway interface {
	PaymentStatus(ctx context.Context, resourcePath string) aci.CallResult
}

// Compensator issues the best-effort refund or reversal when an order is
// failed locally after the provider recorded a successful payment.
type Compensator interface {
	Refund(ctx context.Context, orderNo string, amountCents int64) transactions.Result
	Reverse(ctx context.Context, orderNo string) transactions.Result
}

// WalletSaver stores the card tokenized during checkout.
type WalletSaver interface {
	SaveFromResponse(ctx context.Context, customerID string, resp *aci.PaymentResponse) (wallet.StoredCard, error)
}

// Alerter notifies operators when a compensating call itself fails.
type Alerter interface {
	ReversalFailed(ctx context.Context, orderNo string) error
}

// PostPaymentService reconciles an order when the shopper's browser
// returns from the hosted payment page.
type PostPaymentService struct {
	repo   *orders.Repo
	gw     StatusGateway
	comp   Compensator
	wallet WalletSaver // nil when card registration is disabled
	alerts Alerter     // nil when no notification addresses are configured

	// captureImmediate selects refund over reversal as the compensating
	// action, matching the one-step DB payment type.
	captureImmediate bool

	logger *slog.Logger
}

func NewPostPaymentService(repo *orders.Repo, gw StatusGateway, comp Compensator, w WalletSaver, alerts Alerter, captureImmediate bool) *PostPaymentService {
	return &PostPaymentService{
		repo:             repo,
		gw:               gw,
		comp:             comp,
		wallet:           w,
		alerts:           alerts,
		captureImmediate: captureImmediate,
		logger:           slog.Default(),
	}
}

func (s *PostPaymentService) SetLogger(l *slog.Logger) { s.logger = l }

type PostPaymentResult struct {
	OK      bool
	OrderNo string

	// CancelledByCustomer distinguishes shopper abandonment from real
	// failures so the storefront can route accordingly.
	CancelledByCustomer bool
}

// Process fetches the final payment status, records it on the resolved
// order and either confirms the authorization or fails the order with a
// compensating provider call. An order in created status must never be
// left ambiguous after the redirect round-trip.
func (s *PostPaymentService) Process(ctx context.Context, resourcePath string, state checkout.CorrelationState) PostPaymentResult {
	status := s.gw.PaymentStatus(ctx, resourcePath)
	resp := status.Object

	// prefer the response's merchant transaction ID; fall back to the
	// order number cached in the correlation state
	orderNo := state.OrderNo
	if resp != nil && resp.MerchantTransactionID != "" {
		orderNo = resp.MerchantTransactionID
	}
	if orderNo == "" {
		s.logger.Error("unable to resolve order from redirect return")
		return PostPaymentResult{}
	}

	o, err := s.repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		s.logger.Error("unable to retrieve order", "order_no", orderNo, "err", err)
		return PostPaymentResult{}
	}
	pi, pt, err := s.repo.GatewayPayment(ctx, o.ID)
	if err != nil {
		s.logger.Error("unable to retrieve gateway payment", "order_no", orderNo, "err", err)
		return PostPaymentResult{OrderNo: orderNo}
	}

	if resp != nil {
		if err := s.recordResponse(ctx, &o, &pi, &pt, resp); err != nil {
			s.logger.Error("recording payment response failed", "order_no", orderNo, "err", err)
			return PostPaymentResult{OrderNo: orderNo}
		}
	}

	if code := validate(status, resp, state); code != "" {
		s.logger.Error("payment validation failed", "order_no", orderNo, "error_code", code)
		s.failOrder(ctx, &o, code)

		// compensate only when the provider confirmed success for this
		// session's order; a mismatched session never triggers one
		if code != ErrCodeSessionOrderMismatch && resp != nil && resp.ID != "" && aci.IsSuccess(resp) {
			s.compensate(ctx, orderNo, pi.AmountCents)
		}
		return PostPaymentResult{
			OrderNo:             orderNo,
			CancelledByCustomer: code == ErrCodeCancelledByCustomer,
		}
	}

	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.WithContext(ctx).Model(&orders.PaymentTransaction{}).
			Where("id = ?", pt.ID).
			Updates(map[string]any{"stage": orders.StageResolved, "updated_at": now}).Error; err != nil {
			return err
		}

		if aci.IsPending(resp) {
			// awaiting asynchronous confirmation; the sweep job is the
			// sole writer that clears this flag
			return tx.WithContext(ctx).Model(&orders.Order{}).
				Where("id = ?", o.ID).
				Updates(map[string]any{
					"is_pending_order": true,
					"export_status":    orders.ExportNotExported,
					"updated_at":       now,
				}).Error
		}
		return nil
	})
	if err != nil {
		s.logger.Error("finalizing order failed", "order_no", orderNo, "err", err)
		return PostPaymentResult{OrderNo: orderNo}
	}

	if s.wallet != nil && o.Registered && resp.SavedCardRequested() && resp.RegistrationID != "" {
		if _, err := s.wallet.SaveFromResponse(ctx, o.CustomerID, resp); err != nil {
			s.logger.Error("saving card to wallet failed", "order_no", orderNo, "err", err)
		}
	}

	return PostPaymentResult{OK: true, OrderNo: orderNo}
}

// validate runs the ordered check list; the first failing check wins.
func validate(status aci.CallResult, resp *aci.PaymentResponse, state checkout.CorrelationState) string {
	if state.OrderNo == "" {
		return ErrCodeSessionInvalid
	}
	if !status.OK {
		return ErrCodeServiceError
	}
	if aci.IsRejected(resp) {
		if resp.Result.Code == aci.ResultCodeCancelledByCustomer {
			return ErrCodeCancelledByCustomer
		}
		return ErrCodeRejected
	}
	if resp.ID == "" {
		return ErrCodeTransactionIDMissing
	}
	if state.OrderNo != resp.MerchantTransactionID {
		return ErrCodeSessionOrderMismatch
	}
	return ""
}

// recordResponse persists the provider transaction ID, card details and
// the transaction summary in one transaction.
func (s *PostPaymentService) recordResponse(ctx context.Context, o *orders.Order, pi *orders.PaymentInstrument, pt *orders.PaymentTransaction, resp *aci.PaymentResponse) error {
	return s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now()

		pt.TransactionID = resp.ID
		if err := tx.WithContext(ctx).Model(&orders.PaymentTransaction{}).
			Where("id = ?", pt.ID).
			Updates(map[string]any{
				"transaction_id": resp.ID,
				"processor_ref":  resp.Result.Code,
				"updated_at":     now,
			}).Error; err != nil {
			return err
		}

		if resp.Card != nil {
			pi.CardNumber = "************" + resp.Card.Last4Digits
			pi.CardHolder = resp.Card.Holder
			pi.CardExpiryMonth = resp.Card.ExpiryMonth
			pi.CardExpiryYear = resp.Card.ExpiryYear
			pi.CardBrand = resp.PaymentBrand
			if err := tx.WithContext(ctx).Model(&orders.PaymentInstrument{}).
				Where("id = ?", pi.ID).
				Updates(map[string]any{
					"card_number":       pi.CardNumber,
					"card_holder":       pi.CardHolder,
					"card_expiry_month": pi.CardExpiryMonth,
					"card_expiry_year":  pi.CardExpiryYear,
					"card_brand":        pi.CardBrand,
					"updated_at":        now,
				}).Error; err != nil {
				return err
			}
		}

		summary := aci.Summarize(resp)
		data, err := summaryJSON(summary)
		if err != nil {
			return err
		}
		return orders.SaveResponseTx(ctx, tx, o, pt, aci.HistoryKey(summary), data)
	})
}

func (s *PostPaymentService) failOrder(ctx context.Context, o *orders.Order, code string) {
	if o.Status != orders.StatusCreated {
		return
	}
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		return orders.FailOrderTx(ctx, tx, o, failReasons[code])
	})
	if err != nil {
		s.logger.Error("failing order failed", "order_id", o.ID, "err", err)
	}
}

// compensate undoes a provider-side success the storefront could not
// honor. Best effort: its own failure alerts an operator, no retry.
func (s *PostPaymentService) compensate(ctx context.Context, orderNo string, amountCents int64) {
	var res transactions.Result
	if s.captureImmediate {
		res = s.comp.Refund(ctx, orderNo, amountCents)
	} else {
		res = s.comp.Reverse(ctx, orderNo)
	}
	if !res.OK {
		s.logger.Error("unable to reverse payment", "order_no", orderNo, "error_code", res.ErrorCode)
		if s.alerts != nil {
			if err := s.alerts.ReversalFailed(ctx, orderNo); err != nil {
				s.logger.Error("sending reversal alert failed", "order_no", orderNo, "err", err)
			}
		}
	}
}

func summaryJSON(s aci.TransactionSummary) (json.RawMessage, error) {
	return json.Marshal(s)
}
