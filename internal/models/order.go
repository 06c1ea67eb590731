package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the aggregate status consumers read
type OrderStatus string

const (
	StatusPending          OrderStatus = "pending"
	StatusAwaitingApproval OrderStatus = "awaiting_approval"
	StatusKitchen          OrderStatus = "kitchen"
	StatusReadyToServe     OrderStatus = "ready_to_serve"
	StatusServed           OrderStatus = "served"
	StatusPaid             OrderStatus = "paid"
	StatusCancelled        OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAwaitingApproval, StatusKitchen, StatusReadyToServe,
		StatusServed, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are permitted
func (s OrderStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// ItemStatus is the per line item status
type ItemStatus string

const (
	ItemPending      ItemStatus = "pending"
	ItemKitchen      ItemStatus = "kitchen"
	ItemReadyToServe ItemStatus = "ready_to_serve"
	ItemServed       ItemStatus = "served"
)

// ItemStatuses lists item statuses from least to most advanced
var ItemStatuses = []ItemStatus{ItemPending, ItemKitchen, ItemReadyToServe, ItemServed}

func (s ItemStatus) IsValid() bool {
	return s.rank() >= 0
}

// Before reports whether s is strictly less advanced than other
func (s ItemStatus) Before(other ItemStatus) bool {
	return s.rank() < other.rank()
}

func (s ItemStatus) rank() int {
	for i, st := range ItemStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// LineItem is one ordered quantity of a single menu entry.
// Name and Price are snapshots taken when the item was added.
type LineItem struct {
	ID         uuid.UUID  `json:"id"`
	MenuItemID uuid.UUID  `json:"itemId"`
	Name       string     `json:"name"`
	Price      int64      `json:"price"`
	Quantity   int        `json:"quantity"`
	Notes      string     `json:"notes,omitempty"`
	Status     ItemStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (li LineItem) LineTotal() int64 {
	return li.Price * int64(li.Quantity)
}

// Order binds line items to a table session
type Order struct {
	ID               uuid.UUID      `json:"id"`
	TableID          string         `json:"tableId"`
	SessionID        string         `json:"sessionId"`
	Items            []LineItem     `json:"items"`
	Status           OrderStatus    `json:"status"`
	RequiresApproval bool           `json:"requiresApproval"`
	Subtotal         int64          `json:"subtotal"`
	Tax              int64          `json:"tax"`
	Tip              int64          `json:"tip"`
	Total            int64          `json:"total"`
	PaymentMethod    *PaymentMethod `json:"paymentMethod,omitempty"`
	ApprovedBy       *uuid.UUID     `json:"approvedBy,omitempty"`
	ServedAt         *time.Time     `json:"servedAt"`
	PaidAt           *time.Time     `json:"paidAt,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy so transitions never share state with their input
func (o Order) Clone() Order {
	c := o
	c.Items = append([]LineItem(nil), o.Items...)
	if o.PaymentMethod != nil {
		m := *o.PaymentMethod
		c.PaymentMethod = &m
	}
	if o.ApprovedBy != nil {
		id := *o.ApprovedBy
		c.ApprovedBy = &id
	}
	if o.ServedAt != nil {
		t := *o.ServedAt
		c.ServedAt = &t
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	return c
}

// FindItem returns the index of the line item with the given id
func (o Order) FindItem(id uuid.UUID) (int, bool) {
	for i, it := range o.Items {
		if it.ID == id {
			return i, true
		}
	}
	return -1, false
}

// CountByStatus counts line items per status
func (o Order) CountByStatus() map[ItemStatus]int {
	counts := make(map[ItemStatus]int, len(ItemStatuses))
	for _, st := range ItemStatuses {
		counts[st] = 0
	}
	for _, it := range o.Items {
		counts[it.Status]++
	}
	return counts
}

// CanAddItems reports whether the order still accepts items
func (o Order) CanAddItems() bool {
	return !o.Status.IsTerminal()
}

// CanPay reports whether payment may be initiated
func (o Order) CanPay() bool {
	return o.Status == StatusServed
}

// StatusLogEntry is one committed status change
type StatusLogEntry struct {
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changedBy"`
	ChangedAt time.Time   `json:"timestamp"`
	Notes     *string     `json:"notes,omitempty"`
}
