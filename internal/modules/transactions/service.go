package transactions

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
)

// Classified error codes for order-level transaction operations.
const (
	ErrCodeOrderNotFound       = "UNABLE_TO_FIND_ORDER"
	ErrCodeTransactionNotFound = "UNABLE_TO_FIND_TRANSACTION"
	ErrCodeCapture             = "ACI_CAPTURE_ERROR"
	ErrCodeRefund              = "ACI_REFUND_ERROR"
	ErrCodeReversal            = "ACI_REVERSAL_ERROR"
)

// Gateway is the slice of the ACI client used for payment operations.
type Gateway interface {
	CapturePayment(ctx context.Context, paymentID, currency string, amountCents int64) aci.CallResult
	RefundPayment(ctx context.Context, paymentID, currency string, amountCents int64) aci.CallResult
	ReversePayment(ctx context.Context, paymentID string) aci.CallResult
}

// Result is the outcome reported to callers; provider failures are
// classified, recorded on the order and never propagated as errors.
type Result struct {
	OK        bool
	ErrorCode string
}

// Service runs capture, refund and reversal operations against orders that
// carry an authorized gateway transaction.
type Service struct {
	repo   *orders.Repo
	gw     Gateway
	logger *slog.Logger
}

func NewService(repo *orders.Repo, gw Gateway) *Service {
	return &Service{repo: repo, gw: gw, logger: slog.Default()}
}

func (s *Service) SetLogger(l *slog.Logger) { s.logger = l }

// Capture captures a previously authorized amount. Successful captures are
// appended to the order's captured-amount sequence; partial and repeated
// captures are allowed.
func (s *Service) Capture(ctx context.Context, orderNo string, amountCents int64) Result {
	o, pt, res := s.lookup(ctx, "capture", orderNo)
	if res != nil {
		return *res
	}

	call := s.gw.CapturePayment(ctx, pt.TransactionID, o.Currency, amountCents)
	return s.record(ctx, o, pt, call, ErrCodeCapture, func(tx *gorm.DB) error {
		if !call.OK || !aci.IsSuccess(call.Object) {
			return nil
		}
		if err := o.AppendCapturedAmount(amountCents); err != nil {
			return err
		}
		return tx.WithContext(ctx).Model(&orders.Order{}).
			Where("id = ?", o.ID).
			Updates(map[string]any{
				"captured_amounts": o.CapturedAmounts,
				"updated_at":       time.Now(),
			}).Error
	})
}

// Refund refunds a captured amount.
func (s *Service) Refund(ctx context.Context, orderNo string, amountCents int64) Result {
	o, pt, res := s.lookup(ctx, "refund", orderNo)
	if res != nil {
		return *res
	}
	call := s.gw.RefundPayment(ctx, pt.TransactionID, o.Currency, amountCents)
	return s.record(ctx, o, pt, call, ErrCodeRefund, nil)
}

// Reverse voids an authorization that was never captured.
func (s *Service) Reverse(ctx context.Context, orderNo string) Result {
	o, pt, res := s.lookup(ctx, "reversal", orderNo)
	if res != nil {
		return *res
	}
	call := s.gw.ReversePayment(ctx, pt.TransactionID)
	return s.record(ctx, o, pt, call, ErrCodeReversal, nil)
}

func (s *Service) lookup(ctx context.Context, op, orderNo string) (orders.Order, orders.PaymentTransaction, *Result) {
	o, err := s.repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		s.logger.Error("unable to find order", "op", op, "order_no", orderNo, "err", err)
		return orders.Order{}, orders.PaymentTransaction{}, &Result{ErrorCode: ErrCodeOrderNotFound}
	}
	_, pt, err := s.repo.GatewayPayment(ctx, o.ID)
	if err != nil || pt.TransactionID == "" {
		s.logger.Error("unable to find gateway transaction", "op", op, "order_no", orderNo)
		return orders.Order{}, orders.PaymentTransaction{}, &Result{ErrorCode: ErrCodeTransactionNotFound}
	}
	return o, pt, nil
}

// record persists the provider response (or its error payload) on the
// order and runs the optional success hook in the same transaction.
func (s *Service) record(ctx context.Context, o orders.Order, pt orders.PaymentTransaction, call aci.CallResult, errCode string, onSuccess func(tx *gorm.DB) error) Result {
	payload := call.RawBody
	if len(payload) == 0 {
		payload = []byte(call.ErrorMessage)
	}
	key, entry := aci.SummarizeRaw(payload)

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		if err := orders.SaveResponseTx(ctx, tx, &o, &pt, key, entry); err != nil {
			return err
		}
		if onSuccess != nil {
			return onSuccess(tx)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("recording transaction response failed", "order_id", o.ID, "err", err)
		return Result{ErrorCode: errCode}
	}

	if !call.OK || aci.IsRejected(call.Object) {
		s.logger.Error("transaction operation failed",
			"order_id", o.ID, "error_code", call.ErrorCode, "err", call.ErrorMessage)
		return Result{ErrorCode: errCode}
	}
	return Result{OK: true}
}
