package models

import "github.com/google/uuid"

type ItemRequest struct {
	MenuItemID uuid.UUID `json:"itemId"`
	Quantity   int       `json:"quantity"`
	Notes      string    `json:"notes,omitempty"`
}

// CreateOrderRequest represents the incoming order request.
// RequiresApproval defaults to true when omitted.
type CreateOrderRequest struct {
	TableID          string        `json:"tableId"`
	SessionID        string        `json:"sessionId"`
	Items            []ItemRequest `json:"items"`
	RequiresApproval *bool         `json:"requiresApproval,omitempty"`
}

type AddItemsRequest struct {
	Items            []ItemRequest `json:"items"`
	RequiresApproval *bool         `json:"requiresApproval,omitempty"`
}

type ApproveRequest struct {
	WaiterPIN string `json:"waiterPin"`
}

type PayRequest struct {
	Method PaymentMethod `json:"method"`
	Tip    int64         `json:"tip"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}
