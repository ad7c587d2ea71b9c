package checkout

import "errors"

// ErrCodeGeneral is the generic technical-error code surfaced to the
// storefront when a provider call fails during checkout.
const ErrCodeGeneral = "aci.error.general"

var (
	ErrNotABasket       = errors.New("order is not an open basket")
	ErrNotAuthorizable  = errors.New("transaction not in an authorizable stage")
	ErrCheckoutNotReady = errors.New("no checkout session prepared")
)
