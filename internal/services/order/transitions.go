package order

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

// Command is a lifecycle transition applied to a locked order
type Command interface {
	Name() string
}

// NewItem is a line item already priced against the catalog
type NewItem struct {
	ID         uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Price      int64
	Quantity   int
	Notes      string
}

type Create struct {
	ID               uuid.UUID
	TableID          string
	SessionID        string
	RequiresApproval bool
	Items            []NewItem
}

type Approve struct {
	StaffID uuid.UUID
}

type AddItems struct {
	Items            []NewItem
	RequiresApproval bool
}

type MarkItemReady struct {
	ItemID uuid.UUID
}

type MarkOrderReady struct{}

type MarkItemServed struct {
	ItemID uuid.UUID
}

type MarkOrderServed struct{}

type Pay struct {
	Method models.PaymentMethod
	Tip    int64
}

type Cancel struct{}

func (Create) Name() string          { return "create" }
func (Approve) Name() string         { return "approve" }
func (AddItems) Name() string        { return "add_items" }
func (MarkItemReady) Name() string   { return "mark_item_ready" }
func (MarkOrderReady) Name() string  { return "mark_order_ready" }
func (MarkItemServed) Name() string  { return "mark_item_served" }
func (MarkOrderServed) Name() string { return "mark_order_served" }
func (Pay) Name() string             { return "pay" }
func (Cancel) Name() string          { return "cancel" }

// Env carries the inputs a transition may read besides the order itself
type Env struct {
	Now     time.Time
	TaxRate float64
}

// NewOrder builds the initial state of an order together with its events
func NewOrder(cmd Create, env Env) (models.Order, []models.Event, error) {
	if strings.TrimSpace(cmd.TableID) == "" {
		return models.Order{}, nil, ValidationError{Field: "tableId", Message: "table id is required"}
	}
	if len(cmd.Items) == 0 {
		return models.Order{}, nil, ValidationError{Field: "items", Message: "order must contain at least one item"}
	}

	itemStatus := models.ItemKitchen
	status := models.StatusKitchen
	if cmd.RequiresApproval {
		itemStatus = models.ItemPending
		status = models.StatusAwaitingApproval
	}

	o := models.Order{
		ID:               cmd.ID,
		TableID:          cmd.TableID,
		SessionID:        cmd.SessionID,
		Items:            lineItems(cmd.Items, itemStatus, env.Now),
		Status:           status,
		RequiresApproval: cmd.RequiresApproval,
		CreatedAt:        env.Now,
		UpdatedAt:        env.Now,
	}
	applyTotals(&o, ComputeTotals(o.Items, 0, env.TaxRate))

	return o, deriveEvents(models.Order{}, o), nil
}

// Apply runs cmd against o. The input order is never modified; on error
// the returned order is the zero value and no events are produced.
func Apply(o models.Order, cmd Command, env Env) (models.Order, []models.Event, error) {
	next := o.Clone()

	var err error
	switch c := cmd.(type) {
	case Approve:
		err = approve(&next, c)
	case AddItems:
		err = addItems(&next, c, env)
	case MarkItemReady:
		err = markItemReady(&next, c)
	case MarkOrderReady:
		err = markOrderReady(&next)
	case MarkItemServed:
		err = markItemServed(&next, c, env)
	case MarkOrderServed:
		err = markOrderServed(&next, env)
	case Pay:
		err = pay(&next, c, env)
	case Cancel:
		err = cancel(&next)
	default:
		err = ValidationError{Field: "command", Message: "unsupported command " + cmd.Name()}
	}
	if err != nil {
		return models.Order{}, nil, err
	}

	next.UpdatedAt = env.Now
	return next, deriveEvents(o, next), nil
}

// CheckPayable reports whether a payment may be initiated for o
func CheckPayable(o models.Order) error {
	switch o.Status {
	case models.StatusPaid:
		return conflict(ReasonOrderAlreadyPaid, o.Status)
	case models.StatusCancelled:
		return conflict(ReasonOrderAlreadyCompleted, o.Status)
	case models.StatusServed:
		return nil
	default:
		return conflict(ReasonOrderNotServed, o.Status)
	}
}

func ensureOpen(o *models.Order) error {
	if o.Status.IsTerminal() {
		return conflict(ReasonOrderAlreadyCompleted, o.Status)
	}
	return nil
}

// approve releases pending items to the kitchen. Orders that moved on while
// later items still wait for approval may be approved as well.
func approve(o *models.Order, c Approve) error {
	if err := ensureOpen(o); err != nil {
		return err
	}
	pending := o.CountByStatus()[models.ItemPending]
	if o.Status != models.StatusAwaitingApproval && pending == 0 {
		return conflict(ReasonOrderNotAwaitingApproval, o.Status)
	}

	for i := range o.Items {
		if o.Items[i].Status == models.ItemPending {
			o.Items[i].Status = models.ItemKitchen
		}
	}
	staffID := c.StaffID
	o.ApprovedBy = &staffID
	o.Status = ResolveStatus(o.Items, o.Status, false)
	return nil
}

func addItems(o *models.Order, c AddItems, env Env) error {
	if err := ensureOpen(o); err != nil {
		return err
	}
	if len(c.Items) == 0 {
		return ValidationError{Field: "items", Message: "at least one item is required"}
	}

	itemStatus := models.ItemKitchen
	if c.RequiresApproval {
		itemStatus = models.ItemPending
		o.RequiresApproval = true
	}
	o.Items = append(o.Items, lineItems(c.Items, itemStatus, env.Now)...)
	applyTotals(o, ComputeTotals(o.Items, o.Tip, env.TaxRate))

	prev := o.Status
	// unlike the item marks, adding resolves at once: [ready, kitchen] stays
	// ready_to_serve here but reads kitchen after markItemReady
	o.Status = ResolveStatus(o.Items, prev, o.RequiresApproval)
	if o.Status == models.StatusPending && c.RequiresApproval {
		o.Status = models.StatusAwaitingApproval
	}
	if prev == models.StatusServed && o.Status != models.StatusServed {
		o.ServedAt = nil
	}
	return nil
}

// markItemReady promotes the order only once no item is left before ready
func markItemReady(o *models.Order, c MarkItemReady) error {
	if err := ensureOpen(o); err != nil {
		return err
	}
	idx, ok := o.FindItem(c.ItemID)
	if !ok {
		return conflict(ReasonItemNotFound, o.Status)
	}
	if o.Items[idx].Status != models.ItemKitchen {
		return conflict(ReasonItemNotInKitchen, o.Status)
	}

	o.Items[idx].Status = models.ItemReadyToServe
	if allAtLeast(o.Items, models.ItemReadyToServe) {
		o.Status = ResolveStatus(o.Items, o.Status, o.RequiresApproval)
	}
	return nil
}

func markOrderReady(o *models.Order) error {
	if err := ensureOpen(o); err != nil {
		return err
	}
	if o.Status != models.StatusKitchen {
		return conflict(ReasonOrderNotInKitchen, o.Status)
	}

	for i := range o.Items {
		if o.Items[i].Status == models.ItemKitchen {
			o.Items[i].Status = models.ItemReadyToServe
		}
	}
	o.Status = ResolveStatus(o.Items, o.Status, o.RequiresApproval)
	return nil
}

func markItemServed(o *models.Order, c MarkItemServed, env Env) error {
	if err := ensureOpen(o); err != nil {
		return err
	}
	idx, ok := o.FindItem(c.ItemID)
	if !ok {
		return conflict(ReasonItemNotFound, o.Status)
	}
	if o.Items[idx].Status != models.ItemReadyToServe {
		return conflict(ReasonItemNotReady, o.Status)
	}

	o.Items[idx].Status = models.ItemServed
	if allAtLeast(o.Items, models.ItemServed) {
		o.Status = models.StatusServed
		setServedAt(o, env.Now)
	}
	return nil
}

func markOrderServed(o *models.Order, env Env) error {
	if err := ensureOpen(o); err != nil {
		return err
	}
	if o.Status != models.StatusReadyToServe {
		return conflict(ReasonOrderNotReady, o.Status)
	}

	for i := range o.Items {
		o.Items[i].Status = models.ItemServed
	}
	o.Status = models.StatusServed
	setServedAt(o, env.Now)
	return nil
}

// pay records the tip separately. The stored total stays subtotal plus tax;
// the amount charged is total plus tip.
func pay(o *models.Order, c Pay, env Env) error {
	if err := CheckPayable(*o); err != nil {
		return err
	}
	if c.Tip < 0 {
		return ValidationError{Field: "tip", Message: "tip must not be negative"}
	}
	if !c.Method.IsValid() {
		return ValidationError{Field: "method", Message: "invalid payment method"}
	}

	method := c.Method
	paidAt := env.Now
	o.Status = models.StatusPaid
	o.Tip = c.Tip
	o.PaymentMethod = &method
	o.PaidAt = &paidAt
	return nil
}

func cancel(o *models.Order) error {
	if err := ensureOpen(o); err != nil {
		return err
	}
	o.Status = models.StatusCancelled
	return nil
}

func setServedAt(o *models.Order, now time.Time) {
	if o.ServedAt == nil {
		t := now
		o.ServedAt = &t
	}
}

func lineItems(items []NewItem, status models.ItemStatus, now time.Time) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, models.LineItem{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Price:      it.Price,
			Quantity:   it.Quantity,
			Notes:      it.Notes,
			Status:     status,
			CreatedAt:  now,
		})
	}
	return out
}
