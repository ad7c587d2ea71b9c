package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessorACI identifies instruments bound to the ACI gateway.
const ProcessorACI = "ACI"

type Repo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db, logger: slog.Default()}
}

func (r *Repo) SetLogger(l *slog.Logger) { r.logger = l }

// DB returns the underlying database connection for direct queries.
func (r *Repo) DB() *gorm.DB { return r.db }

func (r *Repo) GetByID(ctx context.Context, id string) (Order, error) {
	var o Order
	if err := r.db.WithContext(ctx).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) GetByOrderNo(ctx context.Context, orderNo string) (Order, error) {
	var o Order
	if err := r.db.WithContext(ctx).First(&o, "order_no = ?", orderNo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) GetItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	var items []OrderItem
	err := r.db.WithContext(ctx).Order("position ASC").Find(&items, "order_id = ?", orderID).Error
	return items, err
}

// ListPending returns the sweep job's work set: unexported orders flagged
// pending whose lifecycle status still allows resolution.
func (r *Repo) ListPending(ctx context.Context) ([]Order, error) {
	var out []Order
	err := r.db.WithContext(ctx).
		Where("export_status = ? AND is_pending_order = ? AND status IN ?",
			ExportNotExported, true, []string{StatusNew, StatusOpen}).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// GatewayPaymentTx resolves the ACI instrument and its transaction for an
// order inside an existing transaction.
func GatewayPaymentTx(ctx context.Context, tx *gorm.DB, orderID string) (PaymentInstrument, PaymentTransaction, error) {
	var pi PaymentInstrument
	if err := tx.WithContext(ctx).
		First(&pi, "order_id = ? AND processor = ?", orderID, ProcessorACI).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PaymentInstrument{}, PaymentTransaction{}, ErrInstrumentNotFound
		}
		return PaymentInstrument{}, PaymentTransaction{}, err
	}

	var pt PaymentTransaction
	if err := tx.WithContext(ctx).First(&pt, "instrument_id = ?", pi.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pi, PaymentTransaction{}, ErrTransactionNotFound
		}
		return pi, PaymentTransaction{}, err
	}
	return pi, pt, nil
}

// GatewayPayment is GatewayPaymentTx against the repo's own connection.
func (r *Repo) GatewayPayment(ctx context.Context, orderID string) (PaymentInstrument, PaymentTransaction, error) {
	return GatewayPaymentTx(ctx, r.db, orderID)
}

// ReplaceInstrumentTx removes any gateway instrument already attached to
// the order and creates a fresh one for the given amount.
func ReplaceInstrumentTx(ctx context.Context, tx *gorm.DB, orderID, paymentMethod, currency string, amountCents int64) (PaymentInstrument, PaymentTransaction, error) {
	var existing []PaymentInstrument
	if err := tx.WithContext(ctx).Find(&existing, "order_id = ? AND processor = ?", orderID, ProcessorACI).Error; err != nil {
		return PaymentInstrument{}, PaymentTransaction{}, err
	}
	for _, pi := range existing {
		if err := tx.WithContext(ctx).Delete(&PaymentTransaction{}, "instrument_id = ?", pi.ID).Error; err != nil {
			return PaymentInstrument{}, PaymentTransaction{}, err
		}
		if err := tx.WithContext(ctx).Delete(&PaymentInstrument{}, "id = ?", pi.ID).Error; err != nil {
			return PaymentInstrument{}, PaymentTransaction{}, err
		}
	}

	now := time.Now()
	pi := PaymentInstrument{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		PaymentMethod: paymentMethod,
		Processor:     ProcessorACI,
		AmountCents:   amountCents,
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&pi).Error; err != nil {
		return PaymentInstrument{}, PaymentTransaction{}, err
	}

	pt := PaymentTransaction{
		ID:           uuid.NewString(),
		InstrumentID: pi.ID,
		Stage:        StageNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(&pt).Error; err != nil {
		return PaymentInstrument{}, PaymentTransaction{}, err
	}
	return pi, pt, nil
}

// SaveResponseTx appends a summary entry to the order's history and the
// matching key to the transaction status flow, persisting both rows.
func SaveResponseTx(ctx context.Context, tx *gorm.DB, o *Order, pt *PaymentTransaction, key string, summary json.RawMessage) error {
	if err := o.AppendPaymentResponse(key, summary); err != nil {
		return err
	}
	now := time.Now()
	if err := tx.WithContext(ctx).Model(&Order{}).
		Where("id = ?", o.ID).
		Updates(map[string]any{
			"payment_response_history": o.PaymentResponseHistory,
			"updated_at":               now,
		}).Error; err != nil {
		return err
	}

	pt.AppendStatusFlow(key)
	return tx.WithContext(ctx).Model(&PaymentTransaction{}).
		Where("id = ?", pt.ID).
		Updates(map[string]any{
			"status_flow": pt.StatusFlow,
			"updated_at":  now,
		}).Error
}

// FailOrderTx fails an order with an explanatory note. Orders are only
// failed from created status; anything else is a no-op guard.
func FailOrderTx(ctx context.Context, tx *gorm.DB, o *Order, reason string) error {
	if o.Status != StatusCreated {
		return ErrNotFailable
	}
	now := time.Now()
	if err := tx.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status = ?", o.ID, StatusCreated).
		Updates(map[string]any{
			"status":     StatusFailed,
			"updated_at": now,
		}).Error; err != nil {
		return err
	}
	o.Status = StatusFailed

	note := OrderNote{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		Subject:   "Order fail reason",
		Body:      reason,
		CreatedAt: now,
	}
	return tx.WithContext(ctx).Create(&note).Error
}

// CancelOrderTx cancels an order after the provider declared its payment
// rejected.
func CancelOrderTx(ctx context.Context, tx *gorm.DB, o *Order) error {
	now := time.Now()
	if err := tx.WithContext(ctx).Model(&Order{}).
		Where("id = ?", o.ID).
		Updates(map[string]any{
			"status":     StatusCancelled,
			"updated_at": now,
		}).Error; err != nil {
		return err
	}
	o.Status = StatusCancelled
	return nil
}

// WithTx runs fn in a transaction, retrying on MySQL deadlock or lock wait
// timeout with a small backoff.
func (r *Repo) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return withTxRetry(ctx, r.db, 3, fn)
}

func withTxRetry(ctx context.Context, db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(tx)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if isRetryableMySQLError(err) && i < attempts-1 {
			time.Sleep(time.Duration(50*(i+1)) * time.Millisecond)
			continue
		}
		return err
	}
	return lastErr
}

func isRetryableMySQLError(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		// 1213: Deadlock found; 1205: Lock wait timeout
		return me.Number == 1213 || me.Number == 1205
	}
	return false
}

// LockOrderTx reloads an order with a row lock inside a transaction.
// SQLite (used in tests) locks the whole database on write; the row lock
// clause only applies on MySQL.
func LockOrderTx(ctx context.Context, tx *gorm.DB, id string) (Order, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var o Order
	if err := q.First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}
