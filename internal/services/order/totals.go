package order

import (
	"math"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

// Totals is the monetary breakdown of an order in whole currency units
type Totals struct {
	Subtotal   int64 `json:"subtotal"`
	Tax        int64 `json:"tax"`
	Tip        int64 `json:"tip"`
	GrandTotal int64 `json:"grandTotal"`
}

// ComputeTotals sums line items and applies tax rounded half away from zero.
// It only reads its inputs, so repeated calls with the same arguments agree.
func ComputeTotals(items []models.LineItem, tip int64, taxRate float64) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.LineTotal()
	}
	tax := int64(math.Round(float64(subtotal) * taxRate))

	return Totals{
		Subtotal:   subtotal,
		Tax:        tax,
		Tip:        tip,
		GrandTotal: subtotal + tax + tip,
	}
}

func applyTotals(o *models.Order, t Totals) {
	o.Subtotal = t.Subtotal
	o.Tax = t.Tax
	o.Total = t.GrandTotal
}
