package aci

import "encoding/json"

// Payment types used by ACI.
const (
	TypePreauthorization = "PA"
	TypeCapture          = "CP"
	TypeDebit            = "DB"
	TypeRefund           = "RF"
	TypeReversal         = "RV"
	TypeService          = "SERVICE"
)

// transactionTypeNames maps ACI payment type codes to the readable names
// used in history keys and status flows.
var transactionTypeNames = map[string]string{
	TypePreauthorization: "AUTHORISATION",
	TypeCapture:          "CAPTURE",
	TypeDebit:            "IMMEDIATE_CAPTURE",
	TypeRefund:           "REFUND",
	TypeReversal:         "REVERSAL",
	TypeService:          "SERVICE",
}

// Result is the nested result object of every ACI response.
type Result struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Card carries card details returned for card payments.
type Card struct {
	Holder      string `json:"holder,omitempty"`
	Last4Digits string `json:"last4Digits,omitempty"`
	ExpiryMonth string `json:"expiryMonth,omitempty"`
	ExpiryYear  string `json:"expiryYear,omitempty"`
}

// PaymentResponse is the parsed body of an ACI checkout, payment or query
// call. Fields are populated per payment type; absent fields stay zero.
type PaymentResponse struct {
	ID                    string            `json:"id"`
	PaymentType           string            `json:"paymentType,omitempty"`
	PaymentBrand          string            `json:"paymentBrand,omitempty"`
	Amount                string            `json:"amount,omitempty"`
	Currency              string            `json:"currency,omitempty"`
	MerchantTransactionID string            `json:"merchantTransactionId,omitempty"`
	ReferencedID          string            `json:"referencedId,omitempty"`
	RegistrationID        string            `json:"registrationId,omitempty"`
	Timestamp             string            `json:"timestamp,omitempty"`
	Result                Result            `json:"result"`
	ResultDetails         map[string]string `json:"resultDetails,omitempty"`
	Risk                  json.RawMessage   `json:"risk,omitempty"`
	Card                  *Card             `json:"card,omitempty"`
	CustomParameters      map[string]string `json:"customParameters,omitempty"`
}

// TransactionType returns the response's payment type, defaulting to SERVICE
// for pure status-query responses that carry none.
func (r *PaymentResponse) TransactionType() string {
	if r.PaymentType == "" {
		return TypeService
	}
	return r.PaymentType
}

// SavedCardRequested reports whether the shopper opted to store the card
// during the hosted checkout.
func (r *PaymentResponse) SavedCardRequested() bool {
	if r.CustomParameters == nil {
		return false
	}
	v, ok := r.CustomParameters["SHOPPER_savedCard"]
	return ok && v != "" && v != "false"
}
