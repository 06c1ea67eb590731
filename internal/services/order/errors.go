package order

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

// Reason is a machine readable failure code returned to clients
type Reason string

const (
	ReasonOrderAlreadyCompleted    Reason = "ORDER_ALREADY_COMPLETED"
	ReasonOrderAlreadyPaid         Reason = "ORDER_ALREADY_PAID"
	ReasonOrderNotServed           Reason = "ORDER_NOT_SERVED"
	ReasonOrderNotAwaitingApproval Reason = "ORDER_NOT_AWAITING_APPROVAL"
	ReasonOrderNotInKitchen        Reason = "ORDER_NOT_IN_KITCHEN"
	ReasonOrderNotReady            Reason = "ORDER_NOT_READY"
	ReasonOrderChanged             Reason = "ORDER_CHANGED_DURING_PAYMENT"
	ReasonItemNotFound             Reason = "ITEM_NOT_FOUND"
	ReasonItemNotInKitchen         Reason = "ITEM_NOT_IN_KITCHEN"
	ReasonItemNotReady             Reason = "ITEM_NOT_READY"
	ReasonInsufficientStock        Reason = "INSUFFICIENT_STOCK"
	ReasonMenuItemUnavailable      Reason = "MENU_ITEM_UNAVAILABLE"
	ReasonPaymentNotPending        Reason = "PAYMENT_NOT_PENDING"
	ReasonPaymentInProgress        Reason = "PAYMENT_IN_PROGRESS"

	ReasonOrderNotFound    Reason = "ORDER_NOT_FOUND"
	ReasonMenuItemNotFound Reason = "MENU_ITEM_NOT_FOUND"
	ReasonPaymentNotFound  Reason = "PAYMENT_NOT_FOUND"

	ReasonValidation Reason = "VALIDATION_ERROR"
	ReasonGateway    Reason = "PAYMENT_GATEWAY_ERROR"
	ReasonDeclined   Reason = "PAYMENT_DECLINED"
	ReasonInvalidPIN Reason = "INVALID_CREDENTIALS"
	ReasonInternal   Reason = "INTERNAL_ERROR"
)

// Sentinel errors returned by storage and gateway adapters
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrMenuItemUnavailable = errors.New("menu item unavailable")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrPaymentDeclined     = errors.New("payment declined")
	ErrGatewayTimeout      = errors.New("payment gateway timeout")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError reports a transition whose precondition does not hold
type ConflictError struct {
	Reason Reason
	Status models.OrderStatus
}

func (e *ConflictError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("conflict: %s", e.Reason)
	}
	return fmt.Sprintf("conflict: %s (order is %s)", e.Reason, e.Status)
}

func conflict(reason Reason, status models.OrderStatus) error {
	return &ConflictError{Reason: reason, Status: status}
}

type NotFoundError struct {
	Reason Reason
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.ID)
}

// StockError is returned when a menu entry cannot cover the requested quantity.
// No stock is decremented for the request that produced it.
type StockError struct {
	MenuItemID  uuid.UUID
	Name        string
	Requested   int
	Available   int
	Unavailable bool
}

func (e *StockError) Error() string {
	if e.Unavailable {
		return fmt.Sprintf("menu item %q is not available", e.Name)
	}
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.Name, e.Requested, e.Available)
}

func (e *StockError) Reason() Reason {
	if e.Unavailable {
		return ReasonMenuItemUnavailable
	}
	return ReasonInsufficientStock
}

// GatewayError wraps a failed, declined or timed out payment gateway call
type GatewayError struct {
	Op        string
	PaymentID uuid.UUID
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed for payment %s: %v", e.Op, e.PaymentID, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the client facing reason code from any service error
func ReasonOf(err error) Reason {
	var (
		ve ValidationError
		ce *ConflictError
		ne *NotFoundError
		se *StockError
		ge *GatewayError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ReasonValidation
	case errors.As(err, &ce):
		return ce.Reason
	case errors.As(err, &ne):
		return ne.Reason
	case errors.As(err, &se):
		return se.Reason()
	case errors.As(err, &ge):
		if errors.Is(ge.Err, ErrPaymentDeclined) {
			return ReasonDeclined
		}
		return ReasonGateway
	case errors.Is(err, ErrInvalidCredentials):
		return ReasonInvalidPIN
	default:
		return ReasonInternal
	}
}
