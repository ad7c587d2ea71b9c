package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Order{}, &OrderItem{}, &PaymentInstrument{}, &PaymentTransaction{}, &OrderNote{}))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, mutate func(*Order)) Order {
	t.Helper()
	no := fmt.Sprintf("%08d", time.Now().UnixNano()%100000000)
	o := Order{
		ID:              uuid.NewString(),
		OrderNo:         &no,
		Status:          StatusCreated,
		ExportStatus:    ExportNotExported,
		CustomerID:      "cust1",
		CustomerEmail:   "jane@example.com",
		Currency:        "EUR",
		TotalGrossCents: 9200,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if mutate != nil {
		mutate(&o)
	}
	require.NoError(t, db.Create(&o).Error)
	return o
}

func TestGetByOrderNo(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	o := seedOrder(t, db, nil)

	got, err := repo.GetByOrderNo(ctx, *o.OrderNo)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = repo.GetByOrderNo(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestTimestampsSurviveRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	o := seedOrder(t, db, nil)
	var pt PaymentTransaction
	require.NoError(t, repo.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		_, pt, err = ReplaceInstrumentTx(ctx, tx, o.ID, "CREDIT_CARD", "EUR", 9200)
		return err
	}))

	// the model declares no dialect-specific time column type, so every
	// supported driver must scan the rows back without error
	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, o.CreatedAt, got.CreatedAt, time.Second)
	assert.False(t, got.UpdatedAt.IsZero())

	gotPi, gotPt, err := repo.GatewayPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, gotPi.CreatedAt.IsZero())
	assert.Equal(t, pt.ID, gotPt.ID)
	assert.False(t, gotPt.UpdatedAt.IsZero())
}

func TestReplaceInstrumentTx(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	o := seedOrder(t, db, nil)

	var pi1 PaymentInstrument
	err := repo.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		pi1, _, err = ReplaceInstrumentTx(ctx, tx, o.ID, "CREDIT_CARD", "EUR", 9200)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, ProcessorACI, pi1.Processor)

	// replacing drops the old instrument and its transaction
	var pi2 PaymentInstrument
	var pt2 PaymentTransaction
	err = repo.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		pi2, pt2, err = ReplaceInstrumentTx(ctx, tx, o.ID, "CREDIT_CARD", "EUR", 8000)
		return err
	})
	require.NoError(t, err)
	assert.NotEqual(t, pi1.ID, pi2.ID)
	assert.Equal(t, StageNew, pt2.Stage)

	var count int64
	require.NoError(t, db.Model(&PaymentInstrument{}).Where("order_id = ?", o.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	gotPi, gotPt, err := repo.GatewayPayment(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, pi2.ID, gotPi.ID)
	assert.Equal(t, pt2.ID, gotPt.ID)
}

func TestSaveResponseTxPersistsHistoryAndFlow(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	o := seedOrder(t, db, nil)
	var pt PaymentTransaction
	require.NoError(t, repo.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		_, pt, err = ReplaceInstrumentTx(ctx, tx, o.ID, "CREDIT_CARD", "EUR", 9200)
		return err
	}))

	err := repo.WithTx(ctx, func(tx *gorm.DB) error {
		return SaveResponseTx(ctx, tx, &o, &pt, "AUTHORISATION_SUCCESS", json.RawMessage(`{"transactionID":"t1"}`))
	})
	require.NoError(t, err)

	reloaded, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.HasPaymentResponses())

	var savedPt PaymentTransaction
	require.NoError(t, db.First(&savedPt, "id = ?", pt.ID).Error)
	assert.Equal(t, "AUTHORISATION_SUCCESS", savedPt.StatusFlow)
}

func TestFailOrderTxOnlyFromCreated(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	created := seedOrder(t, db, nil)
	err := repo.WithTx(ctx, func(tx *gorm.DB) error {
		return FailOrderTx(ctx, tx, &created, "gateway timeout")
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, created.Status)

	var note OrderNote
	require.NoError(t, db.First(&note, "order_id = ?", created.ID).Error)
	assert.Equal(t, "Order fail reason", note.Subject)
	assert.Equal(t, "gateway timeout", note.Body)

	open := seedOrder(t, db, func(o *Order) { o.Status = StatusOpen })
	err = repo.WithTx(ctx, func(tx *gorm.DB) error {
		return FailOrderTx(ctx, tx, &open, "too late")
	})
	assert.ErrorIs(t, err, ErrNotFailable)
}

func TestListPending(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	pending := seedOrder(t, db, func(o *Order) {
		o.Status = StatusNew
		o.IsPendingOrder = true
	})
	seedOrder(t, db, func(o *Order) {
		// pending but already exported
		o.Status = StatusNew
		o.IsPendingOrder = true
		o.ExportStatus = ExportExported
	})
	seedOrder(t, db, func(o *Order) {
		// right flags, wrong lifecycle status
		o.Status = StatusFailed
		o.IsPendingOrder = true
	})
	seedOrder(t, db, func(o *Order) {
		o.Status = StatusNew
	})

	got, err := repo.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pending.ID, got[0].ID)
}

func TestLockOrderTxNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	err := repo.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := LockOrderTx(ctx, tx, uuid.NewString())
		return err
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
