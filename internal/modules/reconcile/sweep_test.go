package reconcile

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/storage"
)

type fakeTxnGateway struct {
	results map[string]aci.CallResult
	calls   int
}

func (f *fakeTxnGateway) TransactionStatus(_ context.Context, paymentID string) aci.CallResult {
	f.calls++
	if r, ok := f.results[paymentID]; ok {
		return r
	}
	return aci.CallResult{OK: false, ErrorCode: aci.ErrCodeServiceUnavailable, ErrorMessage: "unknown payment"}
}

type memArchive struct {
	objects map[string][]byte
}

func (m *memArchive) Put(_ context.Context, r io.Reader, in storage.PutInput) (storage.PutResult, error) {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return storage.PutResult{}, err
	}
	m.objects[in.Filename] = buf.Bytes()
	return storage.PutResult{Key: in.Filename}, nil
}

func (m *memArchive) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

// seedPendingOrder creates an order flagged pending with a resolved
// transaction carrying the given provider payment ID.
func seedPendingOrder(t *testing.T, db *gorm.DB, orderNo, paymentID string) orders.Order {
	t.Helper()
	o := seedPlacedOrder(t, db, orderNo)

	require.NoError(t, db.Model(&orders.Order{}).Where("id = ?", o.ID).
		Updates(map[string]any{"status": orders.StatusNew, "is_pending_order": true}).Error)

	var pi orders.PaymentInstrument
	require.NoError(t, db.First(&pi, "order_id = ?", o.ID).Error)
	require.NoError(t, db.Model(&orders.PaymentTransaction{}).
		Where("instrument_id = ?", pi.ID).
		Updates(map[string]any{"transaction_id": paymentID, "stage": orders.StageResolved}).Error)

	o.Status = orders.StatusNew
	o.IsPendingOrder = true
	return o
}

func queryResult(paymentID, code string) aci.CallResult {
	return aci.CallResult{OK: true, Object: &aci.PaymentResponse{
		ID:          paymentID,
		PaymentType: aci.TypePreauthorization,
		Result:      aci.Result{Code: code},
	}}
}

func TestSweepConfirmsPayment(t *testing.T) {
	db := newTestDB(t)
	o := seedPendingOrder(t, db, "00002000", "pay1")
	gw := &fakeTxnGateway{results: map[string]aci.CallResult{
		"pay1": queryResult("pay1", "000.000.000"),
	}}
	archive := &memArchive{}

	job := NewSweepJob(orders.NewRepo(db), gw, archive)
	require.NoError(t, job.Run(context.Background()))

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsPendingOrder)
	assert.Equal(t, orders.ExportReady, reloaded.ExportStatus)
	assert.Equal(t, orders.StatusNew, reloaded.Status)
	assert.True(t, reloaded.HasPaymentResponses())

	assert.Contains(t, archive.objects, "payment-history-00002000.json")
}

func TestSweepCancelsRejectedPayment(t *testing.T) {
	db := newTestDB(t)
	o := seedPendingOrder(t, db, "00002001", "pay2")
	gw := &fakeTxnGateway{results: map[string]aci.CallResult{
		"pay2": queryResult("pay2", "800.100.151"),
	}}

	job := NewSweepJob(orders.NewRepo(db), gw, nil)
	require.NoError(t, job.Run(context.Background()))

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, reloaded.Status)
	assert.False(t, reloaded.IsPendingOrder)
	assert.Equal(t, orders.ExportNotExported, reloaded.ExportStatus)
}

func TestSweepLeavesStillPendingOrders(t *testing.T) {
	db := newTestDB(t)
	o := seedPendingOrder(t, db, "00002002", "pay3")
	gw := &fakeTxnGateway{results: map[string]aci.CallResult{
		"pay3": queryResult("pay3", "000.200.000"),
	}}

	job := NewSweepJob(orders.NewRepo(db), gw, nil)
	require.NoError(t, job.Run(context.Background()))

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPendingOrder, "no final outcome yet")
	assert.Equal(t, orders.ExportNotExported, reloaded.ExportStatus)
}

func TestSweepIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	o := seedPendingOrder(t, db, "00002003", "pay4")
	gw := &fakeTxnGateway{results: map[string]aci.CallResult{
		"pay4": queryResult("pay4", "000.000.000"),
	}}

	job := NewSweepJob(orders.NewRepo(db), gw, nil)
	require.NoError(t, job.Run(context.Background()))
	firstCalls := gw.calls

	// second run finds an empty work set
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, firstCalls, gw.calls, "resolved orders drop out of the work set")

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	history, err := reloaded.PaymentResponses()
	require.NoError(t, err)
	assert.Len(t, history, 1, "no duplicate history entry")
}

func TestSweepSkipsMissingTransactionID(t *testing.T) {
	db := newTestDB(t)
	o := seedPendingOrder(t, db, "00002004", "")
	gw := &fakeTxnGateway{}

	job := NewSweepJob(orders.NewRepo(db), gw, nil)
	require.NoError(t, job.Run(context.Background()), "missing payment ID is logged, not fatal")
	assert.Zero(t, gw.calls)

	reloaded, err := orders.NewRepo(db).GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPendingOrder, "left for operator attention")
}

func TestSweepReportsQueryFailures(t *testing.T) {
	db := newTestDB(t)
	seedPendingOrder(t, db, "00002005", "pay5")
	seedPendingOrder(t, db, "00002006", "pay6")
	gw := &fakeTxnGateway{results: map[string]aci.CallResult{
		"pay6": queryResult("pay6", "000.000.000"),
	}}

	job := NewSweepJob(orders.NewRepo(db), gw, nil)
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 pending orders failed")

	// the healthy order still resolved
	reloaded, errGet := orders.NewRepo(db).GetByOrderNo(context.Background(), "00002006")
	require.NoError(t, errGet)
	assert.False(t, reloaded.IsPendingOrder)
}
