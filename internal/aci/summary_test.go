package aci

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeAuthorization(t *testing.T) {
	resp := &PaymentResponse{
		ID:          "8ac7a49f",
		PaymentType: TypePreauthorization,
		Amount:      "92.00",
		Timestamp:   "2026-01-12 10:00:00+0000",
		Result:      Result{Code: "000.000.000", Description: "succeeded"},
		ResultDetails: map[string]string{
			"ConnectorTxID1": "abc",
		},
		Risk: json.RawMessage(`{"score":"100"}`),
	}

	s := Summarize(resp)
	assert.Equal(t, "8ac7a49f", s.TransactionID)
	assert.Equal(t, TypePreauthorization, s.TransactionType)
	assert.Equal(t, StatusSuccess, s.TransactionStatus)
	assert.Equal(t, "92.00", s.Amount)
	assert.Equal(t, resp.ResultDetails, s.ResultDetails)
	assert.Equal(t, resp.Risk, s.Risk)
	assert.Empty(t, s.ReferencedID)

	assert.Equal(t, "AUTHORISATION_SUCCESS", HistoryKey(s))
}

func TestSummarizeCapture(t *testing.T) {
	resp := &PaymentResponse{
		ID:            "cap1",
		PaymentType:   TypeCapture,
		ReferencedID:  "auth1",
		Result:        Result{Code: "000.000.000"},
		ResultDetails: map[string]string{"ignored": "yes"},
	}

	s := Summarize(resp)
	assert.Equal(t, "auth1", s.ReferencedID)
	assert.Nil(t, s.ResultDetails, "referencing types do not carry result details")
	assert.Equal(t, "CAPTURE_SUCCESS", HistoryKey(s))
}

func TestSummarizeDefaultsToService(t *testing.T) {
	s := Summarize(&PaymentResponse{Result: Result{Code: "800.100.151"}})
	assert.Equal(t, TypeService, s.TransactionType)
	assert.Equal(t, "SERVICE_REJECTED", HistoryKey(s))
}

func TestHistoryKeys(t *testing.T) {
	cases := []struct {
		paymentType string
		code        string
		want        string
	}{
		{TypePreauthorization, "000.000.000", "AUTHORISATION_SUCCESS"},
		{TypeDebit, "000.000.000", "IMMEDIATE_CAPTURE_SUCCESS"},
		{TypeDebit, "000.200.000", "IMMEDIATE_CAPTURE_PENDING"},
		{TypeRefund, "800.100.151", "REFUND_REJECTED"},
		{TypeReversal, "000.000.000", "REVERSAL_SUCCESS"},
		{TypeCapture, "000.400.000", "CAPTURE_MANUAL_REVIEW"},
	}
	for _, tc := range cases {
		s := Summarize(&PaymentResponse{PaymentType: tc.paymentType, Result: Result{Code: tc.code}})
		assert.Equal(t, tc.want, HistoryKey(s))
	}
}

func TestSummarizeRaw(t *testing.T) {
	t.Run("parsable response", func(t *testing.T) {
		payload := []byte(`{"id":"p1","paymentType":"RF","referencedId":"a1","result":{"code":"000.000.000","description":"ok"}}`)
		key, entry := SummarizeRaw(payload)
		assert.Equal(t, "REFUND_SUCCESS", key)

		var s TransactionSummary
		require.NoError(t, json.Unmarshal(entry, &s))
		assert.Equal(t, "p1", s.TransactionID)
		assert.Equal(t, "a1", s.ReferencedID)
	})

	t.Run("plain string payload", func(t *testing.T) {
		key, entry := SummarizeRaw([]byte("connection timed out"))
		assert.Equal(t, GeneralErrorKey, key)

		var s string
		require.NoError(t, json.Unmarshal(entry, &s))
		assert.Equal(t, "connection timed out", s)
	})

	t.Run("json without result code", func(t *testing.T) {
		key, _ := SummarizeRaw([]byte(`{"unexpected":"shape"}`))
		assert.Equal(t, GeneralErrorKey, key)
	})
}
