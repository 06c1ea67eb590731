package order

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

const (
	maxItemsPerRequest = 50
	maxQuantity        = 99
	maxNotesLength     = 200

	// MaxTip bounds a tip in minor units
	MaxTip int64 = 10_000_000
)

func ValidateCreateOrderRequest(req *models.CreateOrderRequest) error {
	if strings.TrimSpace(req.TableID) == "" {
		return ValidationError{
			Field:   "tableId",
			Message: "table id is required",
		}
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return ValidationError{
			Field:   "sessionId",
			Message: "session id is required",
		}
	}
	return validateItems(req.Items)
}

func ValidateAddItemsRequest(req *models.AddItemsRequest) error {
	return validateItems(req.Items)
}

func ValidatePayRequest(req *models.PayRequest) error {
	if !req.Method.IsValid() {
		return ValidationError{
			Field:   "method",
			Message: "payment method must be one of webpay, applepay, googlepay, pos, cash",
		}
	}
	if req.Tip < 0 {
		return ValidationError{
			Field:   "tip",
			Message: "tip must not be negative",
		}
	}
	if req.Tip > MaxTip {
		return ValidationError{
			Field:   "tip",
			Message: fmt.Sprintf("tip must not exceed %d", MaxTip),
		}
	}
	return nil
}

func ValidateApproveRequest(req *models.ApproveRequest) error {
	if strings.TrimSpace(req.WaiterPIN) == "" {
		return ValidationError{
			Field:   "waiterPin",
			Message: "waiter pin is required",
		}
	}
	return nil
}

func validateItems(items []models.ItemRequest) error {
	if len(items) == 0 {
		return ValidationError{
			Field:   "items",
			Message: "at least one item is required",
		}
	}
	if len(items) > maxItemsPerRequest {
		return ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("at most %d items per request", maxItemsPerRequest),
		}
	}

	for i, item := range items {
		if item.MenuItemID == uuid.Nil {
			return ValidationError{
				Field:   fmt.Sprintf("items[%d].itemId", i),
				Message: "item id is required",
			}
		}
		if item.Quantity < 1 || item.Quantity > maxQuantity {
			return ValidationError{
				Field:   fmt.Sprintf("items[%d].quantity", i),
				Message: fmt.Sprintf("quantity must be between 1 and %d", maxQuantity),
			}
		}
		if len(item.Notes) > maxNotesLength {
			return ValidationError{
				Field:   fmt.Sprintf("items[%d].notes", i),
				Message: fmt.Sprintf("notes must be at most %d characters", maxNotesLength),
			}
		}
	}
	return nil
}

// requiresApproval resolves the optional request flag, falling back to def
func requiresApproval(flag *bool, def bool) bool {
	if flag == nil {
		return def
	}
	return *flag
}
