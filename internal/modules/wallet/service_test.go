package wallet

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
)

type fakeGateway struct {
	prepare aci.CallResult
	status  aci.CallResult
}

func (f *fakeGateway) PrepareRegistration(context.Context, aci.Customer) aci.CallResult {
	return f.prepare
}

func (f *fakeGateway) RegistrationStatus(context.Context, string) aci.CallResult {
	return f.status
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:wallet_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&StoredCard{}))
	return db
}

func tokenizedResponse(registrationID string) *aci.PaymentResponse {
	return &aci.PaymentResponse{
		ID:             "pay1",
		PaymentBrand:   "VISA",
		RegistrationID: registrationID,
		Result:         aci.Result{Code: "000.000.000"},
		Card: &aci.Card{
			Holder:      "Jane Jones",
			Last4Digits: "4242",
			ExpiryMonth: "05",
			ExpiryYear:  "2034",
		},
	}
}

func TestSaveFromResponse(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeGateway{})
	ctx := context.Background()

	card, err := svc.SaveFromResponse(ctx, "cust1", tokenizedResponse("reg1"))
	require.NoError(t, err)
	assert.Equal(t, "reg1", card.RegistrationID)
	assert.Equal(t, "************4242", card.MaskedNumber)
	assert.Equal(t, "VISA", card.Brand)

	// saving the same registration again returns the existing card
	again, err := svc.SaveFromResponse(ctx, "cust1", tokenizedResponse("reg1"))
	require.NoError(t, err)
	assert.Equal(t, card.ID, again.ID)

	ids, err := svc.RegistrationIDs(ctx, "cust1")
	require.NoError(t, err)
	assert.Equal(t, []string{"reg1"}, ids)
}

func TestSaveFromResponseWithoutCard(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeGateway{})

	resp := tokenizedResponse("reg1")
	resp.Card = nil
	_, err := svc.SaveFromResponse(context.Background(), "cust1", resp)
	assert.ErrorIs(t, err, ErrNoCardInResponse)
}

func TestSaveFromResponseFallsBackToPaymentID(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeGateway{})

	resp := tokenizedResponse("")
	card, err := svc.SaveFromResponse(context.Background(), "cust1", resp)
	require.NoError(t, err)
	assert.Equal(t, "pay1", card.RegistrationID)
}

func TestBeginRegistration(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeGateway{prepare: aci.CallResult{
		OK:     true,
		Object: &aci.PaymentResponse{ID: "cko1", Result: aci.Result{Code: "000.200.100"}},
	}})

	id, err := svc.BeginRegistration(context.Background(), aci.Customer{ID: "cust1"})
	require.NoError(t, err)
	assert.Equal(t, "cko1", id)
}

func TestBeginRegistrationFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeGateway{prepare: aci.CallResult{OK: false, ErrorCode: aci.ErrCodeServiceUnavailable}})

	_, err := svc.BeginRegistration(context.Background(), aci.Customer{ID: "cust1"})
	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestCompleteRegistration(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeGateway{status: aci.CallResult{
		OK:     true,
		Object: tokenizedResponse("reg2"),
	}})

	card, err := svc.CompleteRegistration(context.Background(), "cust1", "/v1/checkouts/cko1/registration")
	require.NoError(t, err)
	assert.Equal(t, "reg2", card.RegistrationID)
}

func TestCompleteRegistrationRejected(t *testing.T) {
	db := newTestDB(t)
	rejected := tokenizedResponse("reg3")
	rejected.Result.Code = "800.100.151"
	svc := NewService(db, &fakeGateway{status: aci.CallResult{OK: true, Object: rejected}})

	_, err := svc.CompleteRegistration(context.Background(), "cust1", "/p")
	assert.ErrorIs(t, err, ErrRegistrationFailed)
}

func TestListAndDelete(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, &fakeGateway{})
	ctx := context.Background()

	c1, err := svc.SaveFromResponse(ctx, "cust1", tokenizedResponse("reg1"))
	require.NoError(t, err)
	_, err = svc.SaveFromResponse(ctx, "cust2", tokenizedResponse("reg2"))
	require.NoError(t, err)

	cards, err := svc.List(ctx, "cust1")
	require.NoError(t, err)
	require.Len(t, cards, 1)

	// deleting another customer's card is refused
	err = svc.Delete(ctx, "cust2", c1.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, svc.Delete(ctx, "cust1", c1.ID))
	cards, err = svc.List(ctx, "cust1")
	require.NoError(t, err)
	assert.Empty(t, cards)
}
