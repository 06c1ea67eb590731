package order

import "github.com/Arielutooo/restaurant-app/internal/models"

// ResolveStatus derives the aggregate order status from its items.
// Rules apply in order and the first match wins:
//  1. paid or cancelled stays as is
//  2. no items keeps the current status
//  3. every item served -> served
//  4. any item ready_to_serve -> ready_to_serve
//  5. any item in kitchen -> kitchen
//  6. only pending items -> awaiting_approval when approval is required and
//     the order is already awaiting it, pending otherwise
func ResolveStatus(items []models.LineItem, current models.OrderStatus, requiresApproval bool) models.OrderStatus {
	if current.IsTerminal() {
		return current
	}
	if len(items) == 0 {
		return current
	}

	var served, ready, kitchen int
	for _, it := range items {
		switch it.Status {
		case models.ItemServed:
			served++
		case models.ItemReadyToServe:
			ready++
		case models.ItemKitchen:
			kitchen++
		}
	}

	switch {
	case served == len(items):
		return models.StatusServed
	case ready > 0:
		return models.StatusReadyToServe
	case kitchen > 0:
		return models.StatusKitchen
	case requiresApproval && current == models.StatusAwaitingApproval:
		return models.StatusAwaitingApproval
	default:
		return models.StatusPending
	}
}

// allAtLeast reports whether every item reached the given stage
func allAtLeast(items []models.LineItem, stage models.ItemStatus) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Status.Before(stage) {
			return false
		}
	}
	return true
}
