package aci

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Address is a normalized billing or shipping address.
type Address struct {
	Street1  string
	Street2  string
	City     string
	State    string
	Postcode string
	Country  string

	// shipping only
	FirstName string
	LastName  string
	Phone     string
}

// Customer identifies the shopper on checkout calls.
type Customer struct {
	ID        string
	GivenName string
	Surname   string
	Phone     string
	Email     string
	IP        string
	// Status is NEW for guest shoppers, EXISTING for registered ones.
	Status string
}

// LineItem is one cart line. Gross and net prices are line totals in micro
// units (1e6 per major unit) after discount proration.
type LineItem struct {
	Name        string
	MerchantID  string
	SKU         string
	Description string
	Quantity    int
	GrossMicros int64
	NetMicros   int64
}

// CheckoutOrder is the basket or order snapshot sent to ACI when a checkout
// session is created or updated. Amounts are immutable for the attempt.
type CheckoutOrder struct {
	// OrderNo becomes merchantTransactionId; empty for baskets that have
	// no order row yet.
	OrderNo string

	AmountCents int64
	Currency    string

	Customer Customer
	Billing  Address
	Shipping Address

	ShippingMethod     string
	ShippingGrossCents int64

	Items []LineItem

	// SavedRegistrationIDs are the shopper's stored-card tokens, offered
	// on the hosted page as one-click options.
	SavedRegistrationIDs []string
}

func buildCheckoutPayload(s Settings, co CheckoutOrder) url.Values {
	v := url.Values{}
	v.Set("entityId", s.EntityID)

	v.Set("amount", FormatCents(co.AmountCents))
	v.Set("currency", co.Currency)
	v.Set("paymentType", s.PaymentType())
	if co.OrderNo != "" {
		v.Set("merchantTransactionId", co.OrderNo)
	}
	for i, id := range co.SavedRegistrationIDs {
		v.Set(fmt.Sprintf("registrations[%d].id", i), id)
	}

	addCustomer(v, co.Customer)
	addAddress(v, "billing", co.Billing)
	addAddress(v, "shipping", co.Shipping)
	if co.ShippingMethod != "" {
		v.Set("shipping.method", co.ShippingMethod)
	}
	v.Set("shipping.customer.givenName", co.Shipping.FirstName)
	v.Set("shipping.customer.surname", co.Shipping.LastName)
	v.Set("shipping.customer.email", co.Customer.Email)
	v.Set("shipping.customer.phone", co.Shipping.Phone)

	addCartItems(v, co)
	addMerchant(v, s.Merchant)

	v.Set("customParameters[integrationVersion]", integrationVersion)
	addTestSettings(v, s)
	addThreeDSecure(v, s.ThreeDS)

	return v
}

func addCustomer(v url.Values, c Customer) {
	v.Set("customer.merchantCustomerId", c.ID)
	v.Set("customer.givenName", c.GivenName)
	v.Set("customer.surname", c.Surname)
	v.Set("customer.phone", c.Phone)
	v.Set("customer.email", c.Email)
	v.Set("customer.ip", c.IP)
	v.Set("customer.status", c.Status)
}

func addAddress(v url.Values, prefix string, a Address) {
	v.Set(prefix+".street1", a.Street1)
	v.Set(prefix+".street2", a.Street2)
	v.Set(prefix+".city", a.City)
	v.Set(prefix+".state", a.State)
	v.Set(prefix+".postcode", a.Postcode)
	v.Set(prefix+".country", strings.ToUpper(a.Country))
}

// addCartItems writes the line items, a synthesized shipping-fee line and,
// when the rounded item totals exceed the order grand total, a
// reconciliation adjustment line.
func addCartItems(v url.Values, co CheckoutOrder) {
	var sumCents int64

	i := 0
	for ; i < len(co.Items); i++ {
		it := co.Items[i]
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		unit := UnitPriceCents(it.GrossMicros, qty)
		total := unit * int64(qty)
		sumCents += total

		p := fmt.Sprintf("cart.items[%d].", i)
		v.Set(p+"name", it.Name)
		v.Set(p+"merchantItemId", it.MerchantID)
		v.Set(p+"quantity", strconv.Itoa(qty))
		v.Set(p+"sku", it.SKU)
		v.Set(p+"price", FormatCents(unit))
		v.Set(p+"currency", co.Currency)
		v.Set(p+"description", it.Description)
		v.Set(p+"tax", "0")
		v.Set(p+"totalTaxAmount", "0")
		v.Set(p+"totalAmount", FormatCents(total))
		v.Set(p+"originalPrice", FormatCents(unitNetCents(it.NetMicros, qty)))
	}

	p := fmt.Sprintf("cart.items[%d].", i)
	v.Set(p+"name", "shipping_fee")
	v.Set(p+"quantity", "1")
	v.Set(p+"price", FormatCents(co.ShippingGrossCents))
	v.Set(p+"currency", co.Currency)
	v.Set(p+"description", "Shipping Cost")
	v.Set(p+"tax", "0")
	v.Set(p+"totalTaxAmount", "0")
	v.Set(p+"totalAmount", FormatCents(co.ShippingGrossCents))
	sumCents += co.ShippingGrossCents

	if diff := sumCents - co.AmountCents; diff > 0 {
		v.Set("cart.payments[0].amount", FormatCents(diff))
	}
}

func addMerchant(v url.Values, m Merchant) {
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("merchant.name", m.Name)
	set("merchant.city", m.City)
	set("merchant.street", m.Street)
	set("merchant.postcode", m.PostCode)
	set("merchant.state", m.State)
	set("merchant.country", m.Country)
	set("merchant.phone", m.Phone)
	set("merchant.mcc", m.MCC)
}

func addTestSettings(v url.Values, s Settings) {
	if s.TestMode != "" {
		v.Set("testMode", s.TestMode)
	}
	if s.ForceResultCode != "" {
		v.Set("customParameters[forceResultCode]", s.ForceResultCode)
	}
}

func addThreeDSecure(v url.Values, t ThreeDSecure) {
	set := func(k, val string) {
		if val != "" {
			v.Set(`customParameters["threeDSecure.`+k+`"]`, val)
		}
	}
	set("dsTransactionId", t.DsTransactionID)
	set("version", t.Version)
	set("challengeIndicator", t.ChallengeIndicator)
	set("challengeMandatedIndicator", t.ChallengeMandatedIndicator)
	set("authenticationType", t.AuthenticationType)
	set("exemptionFlag", t.ExemptionFlag)
	set("transactionStatusReason", t.TransactionStatusReason)
	set("acsTransactionId", t.AcsTransactionID)
}
