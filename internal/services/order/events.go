package order

import "github.com/Arielutooo/restaurant-app/internal/models"

// deriveEvents compares two states of the same order and lists the
// notifications the change implies, in dispatch order.
func deriveEvents(before, after models.Order) []models.Event {
	orderCh := models.OrderChannel(after.ID)
	var events []models.Event
	var toKitchen, awaiting int

	for _, it := range after.Items {
		idx, existed := before.FindItem(it.ID)
		if !existed {
			events = append(events, models.Event{
				Channel: orderCh,
				Name:    models.EventItemAdded,
				Payload: models.ItemAddedPayload{OrderID: after.ID, Item: it},
			})
			switch it.Status {
			case models.ItemKitchen:
				toKitchen++
			case models.ItemPending:
				awaiting++
			}
			continue
		}

		prev := before.Items[idx].Status
		if prev == it.Status {
			continue
		}
		events = append(events, models.Event{
			Channel: orderCh,
			Name:    models.EventItemStatus,
			Payload: models.ItemStatusPayload{OrderID: after.ID, ItemID: it.ID, Status: it.Status},
		})
		if prev == models.ItemPending && it.Status == models.ItemKitchen {
			toKitchen++
		}
	}

	events = append(events, models.Event{
		Channel: orderCh,
		Name:    models.EventOrderUpdated,
		Payload: models.OrderUpdatedPayload{
			OrderID:   after.ID,
			Status:    after.Status,
			Total:     after.Total,
			ItemCount: len(after.Items),
			ServedAt:  after.ServedAt,
		},
	})

	if before.Status != after.Status && after.TableID != "" {
		events = append(events, models.Event{
			Channel: models.TableChannel(after.TableID),
			Name:    models.EventTableUpdated,
			Payload: models.TableUpdatedPayload{TableID: after.TableID, OrderID: after.ID, Status: after.Status},
		})
	}

	if toKitchen > 0 {
		events = append(events, staffEvent(models.RoleKitchen, models.EventOrderNewItems, after, toKitchen))
	}
	if awaiting > 0 {
		events = append(events, staffEvent(models.RoleWaiter, models.EventOrderNeedsApproval, after, awaiting))
	}
	if after.Status == models.StatusReadyToServe && before.Status != models.StatusReadyToServe {
		ready := after.CountByStatus()[models.ItemReadyToServe]
		events = append(events, staffEvent(models.RoleWaiter, models.EventOrderReady, after, ready))
	}

	return events
}

func staffEvent(role models.Role, name string, o models.Order, count int) models.Event {
	return models.Event{
		Channel: models.StaffChannel(role),
		Name:    name,
		Payload: models.StaffPayload{OrderID: o.ID, TableID: o.TableID, ItemCount: count},
	}
}
