package aci

import "fmt"

// Line-item gross prices carry sub-cent precision (micro units, 1e6 per
// major unit) because prorated discounts produce fractional cents. Wire
// amounts are always 2-decimal strings.

const microsPerCent = 10_000

// FormatCents renders minor units as a 2-decimal amount string, e.g.
// 1002 -> "10.02".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// UnitPriceCents computes the per-unit price in cents for a line, rounding
// the unit gross UP at 2 decimals so the sum never under-collects.
func UnitPriceCents(grossMicros int64, qty int) int64 {
	if qty < 1 {
		qty = 1
	}
	div := int64(qty) * microsPerCent
	return (grossMicros + div - 1) / div
}

// unitNetCents computes the per-unit net price in cents, rounded to the
// nearest cent.
func unitNetCents(netMicros int64, qty int) int64 {
	if qty < 1 {
		qty = 1
	}
	div := int64(qty) * microsPerCent
	return (netMicros + div/2) / div
}
