package order

import (
	"testing"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name    string
		items   []models.LineItem
		tip     int64
		taxRate float64
		want    Totals
	}{
		{
			name: "two lines at 19 percent",
			items: []models.LineItem{
				{Price: 1000, Quantity: 1},
				{Price: 500, Quantity: 2},
			},
			taxRate: 0.19,
			want:    Totals{Subtotal: 2000, Tax: 380, Tip: 0, GrandTotal: 2380},
		},
		{
			name:    "tip is added to grand total",
			items:   []models.LineItem{{Price: 1000, Quantity: 1}},
			tip:     200,
			taxRate: 0.19,
			want:    Totals{Subtotal: 1000, Tax: 190, Tip: 200, GrandTotal: 1390},
		},
		{
			name:    "tax rounds half up",
			items:   []models.LineItem{{Price: 50, Quantity: 1}},
			taxRate: 0.19,
			want:    Totals{Subtotal: 50, Tax: 10, GrandTotal: 60},
		},
		{
			name:    "tax rounds down below half",
			items:   []models.LineItem{{Price: 33, Quantity: 1}},
			taxRate: 0.19,
			want:    Totals{Subtotal: 33, Tax: 6, GrandTotal: 39},
		},
		{
			name:    "no items",
			taxRate: 0.19,
			want:    Totals{},
		},
		{
			name:    "zero tax rate",
			items:   []models.LineItem{{Price: 990, Quantity: 3}},
			taxRate: 0,
			want:    Totals{Subtotal: 2970, GrandTotal: 2970},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items, tt.tip, tt.taxRate)
			if got != tt.want {
				t.Errorf("ComputeTotals() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeTotalsIsStable(t *testing.T) {
	in := []models.LineItem{
		{Price: 1990, Quantity: 3},
		{Price: 4590, Quantity: 1},
		{Price: 790, Quantity: 7},
	}
	first := ComputeTotals(in, 150, 0.19)
	for i := 0; i < 100; i++ {
		if got := ComputeTotals(in, 150, 0.19); got != first {
			t.Fatalf("call %d = %+v, want %+v", i, got, first)
		}
	}
}
