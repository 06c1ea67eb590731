package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names published to notification channels
const (
	EventOrderUpdated       = "order:updated"
	EventItemAdded          = "order:item_added"
	EventItemStatus         = "order:item_status"
	EventOrderNewItems      = "order:new_items"
	EventOrderNeedsApproval = "order:needs_approval"
	EventOrderReady         = "order_ready"
	EventTableUpdated       = "table:updated"
)

func OrderChannel(orderID uuid.UUID) string {
	return fmt.Sprintf("order:%s", orderID)
}

func StaffChannel(role Role) string {
	return fmt.Sprintf("staff:%s", role)
}

func TableChannel(tableID string) string {
	return fmt.Sprintf("table:%s", tableID)
}

// Event is one notification intent produced by a transition
type Event struct {
	Channel string      `json:"channel"`
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type OrderUpdatedPayload struct {
	OrderID   uuid.UUID   `json:"orderId"`
	Status    OrderStatus `json:"status"`
	Total     int64       `json:"total"`
	ItemCount int         `json:"itemCount"`
	ServedAt  *time.Time  `json:"servedAt"`
}

type ItemAddedPayload struct {
	OrderID uuid.UUID `json:"orderId"`
	Item    LineItem  `json:"item"`
}

type ItemStatusPayload struct {
	OrderID uuid.UUID  `json:"orderId"`
	ItemID  uuid.UUID  `json:"itemId"`
	Status  ItemStatus `json:"status"`
}

// StaffPayload is sent to role channels
type StaffPayload struct {
	OrderID   uuid.UUID `json:"orderId"`
	TableID   string    `json:"tableId"`
	ItemCount int       `json:"itemCount"`
}

type TableUpdatedPayload struct {
	TableID string      `json:"tableId"`
	OrderID uuid.UUID   `json:"orderId"`
	Status  OrderStatus `json:"status"`
}

// Notification is the wire envelope used by broker backed dispatchers
type Notification struct {
	Channel   string          `json:"channel"`
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewNotification encodes payload into an envelope
func NewNotification(channel, event string, payload interface{}) (*Notification, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Notification{
		Channel:   channel,
		Event:     event,
		Payload:   body,
		Timestamp: time.Now().UTC(),
	}, nil
}

// CRM event types
const (
	CRMOrderCreated       = "order_created"
	CRMOrderApproved      = "order_approved"
	CRMOrderStatusChanged = "order_status_changed"
	CRMPaymentCreated     = "payment_created"
	CRMPaymentSuccess     = "payment_success"

	CRMPaymentRefundRequired = "payment_refund_required"
)

// CRMEvent is a fire-and-forget analytics record
type CRMEvent struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"createdAt"`
}
