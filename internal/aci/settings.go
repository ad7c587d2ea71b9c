package aci

import "time"

// integrationVersion is reported to ACI with every checkout.
const integrationVersion = "1.0.0"

// Merchant holds the optional merchant descriptor fields sent with
// checkout calls.
type Merchant struct {
	Name     string
	City     string
	Street   string
	PostCode string
	State    string
	Country  string
	Phone    string
	MCC      string
}

// ThreeDSecure holds the optional 3-D Secure custom parameters.
type ThreeDSecure struct {
	DsTransactionID            string
	Version                    string
	ChallengeIndicator         string
	ChallengeMandatedIndicator string
	AuthenticationType         string
	ExemptionFlag              string
	TransactionStatusReason    string
	AcsTransactionID           string
}

// Settings is the static client configuration. The bearer token is a shared
// credential appended to every request; there is no per-call token refresh.
type Settings struct {
	BaseURL     string
	APIVersion  string
	BearerToken string
	EntityID    string

	// CaptureImmediately selects one-step DB payments instead of the
	// two-step PA/CP flow.
	CaptureImmediately bool

	TestMode        string
	ForceResultCode string

	Merchant Merchant
	ThreeDS  ThreeDSecure

	Timeout time.Duration
}

// PaymentType returns the checkout payment type selected by the capture
// preference.
func (s Settings) PaymentType() string {
	if s.CaptureImmediately {
		return TypeDebit
	}
	return TypePreauthorization
}
