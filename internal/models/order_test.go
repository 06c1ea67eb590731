package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestItemStatusBefore(t *testing.T) {
	tests := []struct {
		a, b ItemStatus
		want bool
	}{
		{ItemPending, ItemKitchen, true},
		{ItemKitchen, ItemReadyToServe, true},
		{ItemReadyToServe, ItemServed, true},
		{ItemServed, ItemServed, false},
		{ItemServed, ItemPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.a)+"_"+string(tt.b), func(t *testing.T) {
			if got := tt.a.Before(tt.b); got != tt.want {
				t.Errorf("%s.Before(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}

	if ItemStatus("cooking").IsValid() {
		t.Error("unknown item status reported valid")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, st := range []OrderStatus{StatusPending, StatusAwaitingApproval, StatusKitchen, StatusReadyToServe, StatusServed} {
		if st.IsTerminal() {
			t.Errorf("%s reported terminal", st)
		}
	}
	for _, st := range []OrderStatus{StatusPaid, StatusCancelled} {
		if !st.IsTerminal() {
			t.Errorf("%s not reported terminal", st)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	served := time.Now()
	approver := uuid.New()
	method := MethodCash
	o := Order{
		ID:            uuid.New(),
		Items:         []LineItem{{ID: uuid.New(), Status: ItemKitchen}},
		ServedAt:      &served,
		ApprovedBy:    &approver,
		PaymentMethod: &method,
	}

	c := o.Clone()
	c.Items[0].Status = ItemServed
	*c.ServedAt = served.Add(time.Hour)
	*c.ApprovedBy = uuid.New()
	*c.PaymentMethod = MethodPOS

	if o.Items[0].Status != ItemKitchen {
		t.Error("clone shares items")
	}
	if !o.ServedAt.Equal(served) {
		t.Error("clone shares servedAt")
	}
	if *o.ApprovedBy != approver {
		t.Error("clone shares approvedBy")
	}
	if *o.PaymentMethod != MethodCash {
		t.Error("clone shares payment method")
	}
}

func TestCountByStatus(t *testing.T) {
	o := Order{Items: []LineItem{
		{Status: ItemKitchen}, {Status: ItemKitchen}, {Status: ItemServed},
	}}
	counts := o.CountByStatus()
	if counts[ItemKitchen] != 2 || counts[ItemServed] != 1 || counts[ItemPending] != 0 {
		t.Errorf("CountByStatus() = %v", counts)
	}
	if len(counts) != len(ItemStatuses) {
		t.Errorf("CountByStatus() has %d keys, want %d", len(counts), len(ItemStatuses))
	}
}

func TestPaymentPayable(t *testing.T) {
	p := Payment{Amount: 2380, Tip: 200}
	if p.Payable() != 2580 {
		t.Errorf("Payable() = %d, want 2580", p.Payable())
	}
	if PaymentMethod("bitcoin").IsValid() {
		t.Error("unknown method reported valid")
	}
}
