package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/checkout"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/transactions"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/wallet"
)

type fakeStatusGateway struct {
	result aci.CallResult
}

func (f *fakeStatusGateway) PaymentStatus(context.Context, string) aci.CallResult {
	return f.result
}

type fakeCompensator struct {
	refunds   []int64
	reversals int
	result    transactions.Result
}

func (f *fakeCompensator) Refund(_ context.Context, _ string, amountCents int64) transactions.Result {
	f.refunds = append(f.refunds, amountCents)
	return f.result
}

func (f *fakeCompensator) Reverse(context.Context, string) transactions.Result {
	f.reversals++
	return f.result
}

type fakeWallet struct{ saved int }

func (f *fakeWallet) SaveFromResponse(context.Context, string, *aci.PaymentResponse) (wallet.StoredCard, error) {
	f.saved++
	return wallet.StoredCard{}, nil
}

type fakeAlerter struct{ alerts []string }

func (f *fakeAlerter) ReversalFailed(_ context.Context, orderNo string) error {
	f.alerts = append(f.alerts, orderNo)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:reconcile_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orders.Order{}, &orders.OrderItem{},
		&orders.PaymentInstrument{}, &orders.PaymentTransaction{}, &orders.OrderNote{}))
	return db
}

// seedPlacedOrder creates a created-status order with an instrument whose
// transaction awaits the redirect return.
func seedPlacedOrder(t *testing.T, db *gorm.DB, orderNo string) orders.Order {
	t.Helper()
	repo := orders.NewRepo(db)
	ctx := context.Background()

	o := orders.Order{
		ID:              uuid.NewString(),
		OrderNo:         &orderNo,
		Status:          orders.StatusCreated,
		ExportStatus:    orders.ExportNotExported,
		CustomerID:      "cust1",
		CustomerEmail:   "jane@example.com",
		Registered:      true,
		Currency:        "EUR",
		TotalGrossCents: 9200,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, db.Create(&o).Error)

	require.NoError(t, repo.WithTx(ctx, func(tx *gorm.DB) error {
		_, pt, err := orders.ReplaceInstrumentTx(ctx, tx, o.ID, "CREDIT_CARD", "EUR", 9200)
		if err != nil {
			return err
		}
		return tx.Model(&orders.PaymentTransaction{}).Where("id = ?", pt.ID).
			Update("stage", orders.StageAwaitingRedirect).Error
	}))
	return o
}

func successResponse(orderNo string) aci.CallResult {
	return aci.CallResult{OK: true, Object: &aci.PaymentResponse{
		ID:                    "pay1",
		PaymentType:           aci.TypePreauthorization,
		PaymentBrand:          "VISA",
		Amount:                "92.00",
		MerchantTransactionID: orderNo,
		Result:                aci.Result{Code: "000.000.000"},
		Card: &aci.Card{
			Holder:      "Jane Jones",
			Last4Digits: "4242",
			ExpiryMonth: "05",
			ExpiryYear:  "2034",
		},
	}}
}

func newService(db *gorm.DB, gw StatusGateway, comp Compensator, w WalletSaver, alerts Alerter) *PostPaymentService {
	return NewPostPaymentService(orders.NewRepo(db), gw, comp, w, alerts, false)
}

func TestProcessSuccessResolvesTransaction(t *testing.T) {
	db := newTestDB(t)
	o := seedPlacedOrder(t, db, "00001000")
	comp := &fakeCompensator{}

	svc := newService(db, &fakeStatusGateway{result: successResponse("00001000")}, comp, nil, nil)
	res := svc.Process(context.Background(), "/v1/checkouts/cko1/payment",
		checkout.CorrelationState{OrderNo: "00001000", CheckoutID: "cko1"})

	assert.True(t, res.OK)
	assert.Equal(t, "00001000", res.OrderNo)
	assert.False(t, res.CancelledByCustomer)
	assert.Zero(t, comp.reversals)

	repo := orders.NewRepo(db)
	pi, pt, err := repo.GatewayPayment(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StageResolved, pt.Stage)
	assert.Equal(t, "pay1", pt.TransactionID)
	assert.Equal(t, "************4242", pi.CardNumber)
	assert.Equal(t, "VISA", pi.CardBrand)
	assert.Contains(t, pt.StatusFlow, "AUTHORISATION_SUCCESS")

	reloaded, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCreated, reloaded.Status, "order placement stays with the pipeline")
	assert.False(t, reloaded.IsPendingOrder)
	assert.True(t, reloaded.HasPaymentResponses())
}

func TestProcessPendingFlagsOrder(t *testing.T) {
	db := newTestDB(t)
	o := seedPlacedOrder(t, db, "00001001")

	result := successResponse("00001001")
	result.Object.Result.Code = "000.200.000"

	svc := newService(db, &fakeStatusGateway{result: result}, &fakeCompensator{}, nil, nil)
	res := svc.Process(context.Background(), "/p",
		checkout.CorrelationState{OrderNo: "00001001"})

	assert.True(t, res.OK, "pending counts as accepted; the sweep decides later")

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPendingOrder)
	assert.Equal(t, orders.ExportNotExported, reloaded.ExportStatus)
}

func TestProcessSessionInvalid(t *testing.T) {
	db := newTestDB(t)
	o := seedPlacedOrder(t, db, "00001002")
	comp := &fakeCompensator{result: transactions.Result{OK: true}}

	// empty correlation state: the storefront session is gone, but the
	// response still names the order
	svc := newService(db, &fakeStatusGateway{result: successResponse("00001002")}, comp, nil, nil)
	res := svc.Process(context.Background(), "/p", checkout.CorrelationState{})

	assert.False(t, res.OK)
	assert.Equal(t, "00001002", res.OrderNo)

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, reloaded.Status)

	// provider recorded a success for this order, so it is undone
	assert.Equal(t, 1, comp.reversals)
}

func TestProcessSessionOrderMismatchSkipsCompensation(t *testing.T) {
	db := newTestDB(t)
	o := seedPlacedOrder(t, db, "00001003")
	seedPlacedOrder(t, db, "00001999")
	comp := &fakeCompensator{result: transactions.Result{OK: true}}

	// response names order 00001003, session expected 00001999
	svc := newService(db, &fakeStatusGateway{result: successResponse("00001003")}, comp, nil, nil)
	res := svc.Process(context.Background(), "/p",
		checkout.CorrelationState{OrderNo: "00001999"})

	assert.False(t, res.OK)
	assert.Equal(t, "00001003", res.OrderNo, "the response's order wins")

	// the mismatched order fails but its authorization is left alone
	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, reloaded.Status)
	assert.Zero(t, comp.reversals)
	assert.Empty(t, comp.refunds)
}

func TestProcessRejected(t *testing.T) {
	db := newTestDB(t)
	o := seedPlacedOrder(t, db, "00001004")
	comp := &fakeCompensator{result: transactions.Result{OK: true}}

	result := successResponse("00001004")
	result.Object.Result.Code = "800.100.151"

	svc := newService(db, &fakeStatusGateway{result: result}, comp, nil, nil)
	res := svc.Process(context.Background(), "/p",
		checkout.CorrelationState{OrderNo: "00001004"})

	assert.False(t, res.OK)
	assert.False(t, res.CancelledByCustomer)

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, reloaded.Status)
	assert.Zero(t, comp.reversals, "a rejection has nothing to undo")

	var note orders.OrderNote
	require.NoError(t, db.First(&note, "order_id = ?", o.ID).Error)
	assert.Equal(t, "Payment was rejected by ACI", note.Body)
}

func TestProcessCancelledByCustomer(t *testing.T) {
	db := newTestDB(t)
	seedPlacedOrder(t, db, "00001005")

	result := successResponse("00001005")
	result.Object.Result.Code = aci.ResultCodeCancelledByCustomer

	svc := newService(db, &fakeStatusGateway{result: result}, &fakeCompensator{}, nil, nil)
	res := svc.Process(context.Background(), "/p",
		checkout.CorrelationState{OrderNo: "00001005"})

	assert.False(t, res.OK)
	assert.True(t, res.CancelledByCustomer)
}

func TestProcessServiceErrorFailsOrder(t *testing.T) {
	db := newTestDB(t)
	o := seedPlacedOrder(t, db, "00001006")
	comp := &fakeCompensator{}

	svc := newService(db, &fakeStatusGateway{result: aci.CallResult{
		OK: false, ErrorCode: aci.ErrCodeServiceUnavailable, ErrorMessage: "timeout",
	}}, comp, nil, nil)
	res := svc.Process(context.Background(), "/p",
		checkout.CorrelationState{OrderNo: "00001006"})

	assert.False(t, res.OK)
	assert.Zero(t, comp.reversals, "no confirmed success, nothing to undo")

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, reloaded.Status)
}

func TestProcessCompensationFailureAlerts(t *testing.T) {
	db := newTestDB(t)
	seedPlacedOrder(t, db, "00001007")
	comp := &fakeCompensator{result: transactions.Result{OK: false, ErrorCode: "ACI_REVERSAL_ERROR"}}
	alerts := &fakeAlerter{}

	svc := newService(db, &fakeStatusGateway{result: successResponse("00001007")}, comp, nil, alerts)
	svc.Process(context.Background(), "/p", checkout.CorrelationState{})

	assert.Equal(t, 1, comp.reversals)
	assert.Equal(t, []string{"00001007"}, alerts.alerts)
}

func TestProcessRefundsWhenCaptureImmediate(t *testing.T) {
	db := newTestDB(t)
	seedPlacedOrder(t, db, "00001008")
	comp := &fakeCompensator{result: transactions.Result{OK: true}}

	svc := NewPostPaymentService(orders.NewRepo(db),
		&fakeStatusGateway{result: successResponse("00001008")}, comp, nil, nil, true)
	svc.Process(context.Background(), "/p", checkout.CorrelationState{})

	assert.Equal(t, []int64{9200}, comp.refunds)
	assert.Zero(t, comp.reversals)
}

func TestProcessSavesOptedInCard(t *testing.T) {
	db := newTestDB(t)
	seedPlacedOrder(t, db, "00001009")
	w := &fakeWallet{}

	result := successResponse("00001009")
	result.Object.RegistrationID = "reg1"
	result.Object.CustomParameters = map[string]string{"SHOPPER_savedCard": "true"}

	svc := newService(db, &fakeStatusGateway{result: result}, &fakeCompensator{}, w, nil)
	res := svc.Process(context.Background(), "/p",
		checkout.CorrelationState{OrderNo: "00001009"})

	assert.True(t, res.OK)
	assert.Equal(t, 1, w.saved)
}
