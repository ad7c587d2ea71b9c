package orders

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Order lifecycle statuses. A row starts as a basket, becomes a created
// order when the checkout pipeline places it, and is confirmed (new/open),
// cancelled or failed from there.
const (
	StatusBasket    = "basket"
	StatusCreated   = "created"
	StatusNew       = "new"
	StatusOpen      = "open"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// Export statuses gating downstream fulfillment.
const (
	ExportNotExported = "not_exported"
	ExportReady       = "ready"
	ExportExported    = "exported"
)

// Authorization stages of a payment transaction. Replaces the implicit
// first-call/second-call convention of hosted checkout with explicit state.
const (
	StageNew              = "new"
	StageInitialized      = "initialized"
	StageAwaitingRedirect = "awaiting_redirect"
	StageResolved         = "resolved"
)

type Order struct {
	ID      string  `gorm:"type:char(36);primaryKey"`
	OrderNo *string `gorm:"type:varchar(32);uniqueIndex:ux_orders_order_no"`

	Status       string `gorm:"type:varchar(32);not null;index:ix_orders_status"`
	ExportStatus string `gorm:"type:varchar(32);not null"`

	CustomerID        string `gorm:"type:varchar(64);not null"`
	CustomerEmail     string `gorm:"type:varchar(255);not null"`
	CustomerFirstName string `gorm:"type:varchar(100)"`
	CustomerLastName  string `gorm:"type:varchar(100)"`
	CustomerPhone     string `gorm:"type:varchar(32)"`
	CustomerRemoteIP  string `gorm:"type:varchar(45)"`
	Registered        bool   `gorm:"not null"`

	Currency           string `gorm:"type:char(3);not null"`
	TotalGrossCents    int64  `gorm:"not null"`
	GiftCertCents      int64  `gorm:"not null"`
	ShippingGrossCents int64  `gorm:"not null"`
	ShippingMethod     string `gorm:"type:varchar(64)"`

	Billing  Address `gorm:"embedded;embeddedPrefix:billing_"`
	Shipping Address `gorm:"embedded;embeddedPrefix:shipping_"`

	// checkout session correlation; at most one live session per order
	CheckoutID *string `gorm:"type:varchar(64);index:ix_orders_checkout_id"`

	IsPendingOrder bool `gorm:"not null"`

	// serialized transaction summaries, newest first
	PaymentResponseHistory datatypes.JSON `gorm:"type:json"`
	// append-only sequence of captured amounts, minor units
	CapturedAmounts datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

type Address struct {
	FirstName string `gorm:"type:varchar(100)"`
	LastName  string `gorm:"type:varchar(100)"`
	Street1   string `gorm:"type:varchar(255)"`
	Street2   string `gorm:"type:varchar(255)"`
	City      string `gorm:"type:varchar(100)"`
	State     string `gorm:"type:varchar(32)"`
	Postcode  string `gorm:"type:varchar(16)"`
	Country   string `gorm:"type:char(2)"`
	Phone     string `gorm:"type:varchar(32)"`
}

type OrderItem struct {
	ID      string `gorm:"type:char(36);primaryKey"`
	OrderID string `gorm:"type:char(36);not null;index:ix_order_items_order_id"`

	Position    int    `gorm:"not null"`
	SKU         string `gorm:"type:varchar(64);not null"`
	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:varchar(255)"`
	Quantity    int    `gorm:"not null"`

	// line totals in micro units; prorated discounts leave fractional cents
	AdjustedGrossMicros int64 `gorm:"not null"`
	AdjustedNetMicros   int64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// PaymentInstrument is the gateway payment attached to a basket/order.
// At most one ACI instrument is active at a time; Handle replaces it.
type PaymentInstrument struct {
	ID      string `gorm:"type:char(36);primaryKey"`
	OrderID string `gorm:"type:char(36);not null;index:ix_payment_instruments_order_id"`

	PaymentMethod string `gorm:"type:varchar(64);not null"`
	Processor     string `gorm:"type:varchar(32);not null"`
	AmountCents   int64  `gorm:"not null"`
	Currency      string `gorm:"type:char(3);not null"`

	CardHolder      string `gorm:"type:varchar(100)"`
	CardNumber      string `gorm:"type:varchar(32)"` // masked
	CardExpiryMonth string `gorm:"type:varchar(2)"`
	CardExpiryYear  string `gorm:"type:varchar(4)"`
	CardBrand       string `gorm:"type:varchar(32)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (PaymentInstrument) TableName() string { return "payment_instruments" }

// PaymentTransaction tracks the provider-side transaction of an instrument.
type PaymentTransaction struct {
	ID           string `gorm:"type:char(36);primaryKey"`
	InstrumentID string `gorm:"type:char(36);not null;uniqueIndex:ux_payment_transactions_instrument"`

	// provider-assigned correlation ID for capture/refund/reversal
	TransactionID string `gorm:"type:varchar(64);index:ix_payment_transactions_txn_id"`
	ProcessorRef  string `gorm:"type:varchar(64)"`

	Stage string `gorm:"type:varchar(32);not null"`

	// append-only " > "-joined trail, e.g. "AUTHORISATION_SUCCESS > CAPTURE_SUCCESS"
	StatusFlow string `gorm:"type:varchar(1024)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

type OrderNote struct {
	ID      string `gorm:"type:char(36);primaryKey"`
	OrderID string `gorm:"type:char(36);not null;index:ix_order_notes_order_id"`

	Subject string `gorm:"type:varchar(100);not null"`
	Body    string `gorm:"type:varchar(500)"`

	CreatedAt time.Time `gorm:"not null"`
}

func (OrderNote) TableName() string { return "order_notes" }

// AppendPaymentResponse pushes a summary entry to the front of the stored
// history (most recent first), keyed by "<TYPE>_<STATUS>".
func (o *Order) AppendPaymentResponse(key string, summary json.RawMessage) error {
	entry, err := json.Marshal(map[string]json.RawMessage{key: summary})
	if err != nil {
		return err
	}

	var history []json.RawMessage
	if len(o.PaymentResponseHistory) > 0 {
		if err := json.Unmarshal(o.PaymentResponseHistory, &history); err != nil {
			return err
		}
	}
	history = append([]json.RawMessage{entry}, history...)

	data, err := json.Marshal(history)
	if err != nil {
		return err
	}
	o.PaymentResponseHistory = datatypes.JSON(data)
	return nil
}

// PaymentResponses returns the stored history entries, newest first.
func (o *Order) PaymentResponses() ([]json.RawMessage, error) {
	if len(o.PaymentResponseHistory) == 0 {
		return nil, nil
	}
	var history []json.RawMessage
	if err := json.Unmarshal(o.PaymentResponseHistory, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// HasPaymentResponses reports whether any provider response was recorded.
func (o *Order) HasPaymentResponses() bool {
	h, err := o.PaymentResponses()
	return err == nil && len(h) > 0
}

// AppendCapturedAmount records one more captured amount in minor units.
// Supports partial and multiple captures.
func (o *Order) AppendCapturedAmount(amountCents int64) error {
	var amounts []int64
	if len(o.CapturedAmounts) > 0 {
		if err := json.Unmarshal(o.CapturedAmounts, &amounts); err != nil {
			return err
		}
	}
	amounts = append(amounts, amountCents)

	data, err := json.Marshal(amounts)
	if err != nil {
		return err
	}
	o.CapturedAmounts = datatypes.JSON(data)
	return nil
}

// AppendStatusFlow grows the transaction status trail. The flow only ever
// grows; it is never rewritten or reordered.
func (t *PaymentTransaction) AppendStatusFlow(key string) {
	if t.StatusFlow == "" {
		t.StatusFlow = key
		return
	}
	t.StatusFlow = t.StatusFlow + " > " + key
}
