package aci

import "regexp"

// Transaction statuses derived from ACI result codes.
const (
	StatusSuccess      = "SUCCESS"
	StatusManualReview = "MANUAL_REVIEW"
	StatusPending      = "PENDING"
	StatusRejected     = "REJECTED"
)

// ResultCodeCancelledByCustomer is returned when the shopper aborts the
// hosted payment page. It classifies as REJECTED but callers surface it
// separately.
const ResultCodeCancelledByCustomer = "100.396.101"

var (
	successCodes = regexp.MustCompile(`^(000\.000\.|000\.100\.1|000\.[36])`)
	reviewCodes  = regexp.MustCompile(`^(000\.400\.0[^3]|000\.400\.100)`)
	pendingCodes = regexp.MustCompile(`^(000\.200|800\.400\.5|100\.400\.500)`)
)

// ClassifyResultCode maps an ACI result code to a transaction status.
// First match wins; anything unrecognized is REJECTED.
func ClassifyResultCode(code string) string {
	switch {
	case successCodes.MatchString(code):
		return StatusSuccess
	case reviewCodes.MatchString(code):
		// successfully processed, needs manual review
		return StatusManualReview
	case pendingCodes.MatchString(code):
		return StatusPending
	default:
		return StatusRejected
	}
}

// IsSuccess reports whether the response result code classifies as SUCCESS.
func IsSuccess(resp *PaymentResponse) bool {
	return resp != nil && ClassifyResultCode(resp.Result.Code) == StatusSuccess
}

// IsRejected reports whether the response result code classifies as REJECTED.
func IsRejected(resp *PaymentResponse) bool {
	return resp != nil && ClassifyResultCode(resp.Result.Code) == StatusRejected
}

// IsPending reports whether the transaction still awaits a final outcome,
// i.e. classifies as PENDING or MANUAL_REVIEW.
func IsPending(resp *PaymentResponse) bool {
	if resp == nil {
		return false
	}
	st := ClassifyResultCode(resp.Result.Code)
	return st == StatusPending || st == StatusManualReview
}
