package cart

import "github.com/example/parkpass/internal/models"

// Totals is the derived monetary view of a cart. It is recomputed from
// line items on every read and never stored.
type Totals struct {
	TicketsSubtotal float64 `json:"tickets_subtotal"`
	AddonsSubtotal  float64 `json:"addons_subtotal"`
	GrossTotal      float64 `json:"gross_total"`
	Discount        float64 `json:"discount"`
	FinalTotal      float64 `json:"final_total"`
}

// ComputeTotals derives all totals from the given items and discount.
// FinalTotal never goes below zero.
func ComputeTotals(items []models.CartLineItem, discount float64) Totals {
	t := Totals{Discount: discount}
	for _, item := range items {
		t.TicketsSubtotal += item.UnitPrice * float64(item.Qty)
		for _, addon := range item.Addons {
			t.AddonsSubtotal += addon.Price * float64(addon.Quantity)
		}
	}
	t.GrossTotal = t.TicketsSubtotal + t.AddonsSubtotal
	t.FinalTotal = t.GrossTotal - t.Discount
	if t.FinalTotal < 0 {
		t.FinalTotal = 0
	}
	return t
}

// Totals recomputes the session's totals using the currently applied
// coupon discount.
func (s *Session) Totals() Totals {
	return ComputeTotals(s.Items, s.Coupon.Discount)
}
