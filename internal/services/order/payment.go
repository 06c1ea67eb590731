package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
)

// PaymentResult is returned once a payment attempt has been recorded
type PaymentResult struct {
	Payment       models.Payment `json:"payment"`
	Order         models.Order   `json:"order"`
	PayableAmount int64          `json:"payableAmount"`
}

// Pay charges a served order. The order lock is held across the gateway
// call so no items can be added while money moves.
func (s *Service) Pay(ctx context.Context, orderID uuid.UUID, req *models.PayRequest, requestID string) (*PaymentResult, error) {
	if err := ValidatePayRequest(req); err != nil {
		s.logger.Warn("validation_failed", err.Error(), requestID, nil)
		return nil, err
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	var payment models.Payment
	err := s.store.WithTx(ctx, func(tx Tx) error {
		current, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := CheckPayable(*current); err != nil {
			return err
		}
		if err := ensureNoPendingPayment(ctx, tx, *current); err != nil {
			return err
		}

		payment = models.Payment{
			ID:        s.newID(),
			OrderID:   current.ID,
			Method:    req.Method,
			Amount:    current.Total,
			Tip:       req.Tip,
			Status:    models.PaymentPending,
			CreatedAt: s.now(),
		}
		if err := tx.Payments().Insert(ctx, &payment); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("payment_rejected", "Payment could not be initiated", requestID, err, map[string]interface{}{
			"order_id": orderID,
		})
		return nil, err
	}

	s.logger.Info("payment_initiated", "Payment created", requestID, map[string]interface{}{
		"order_id":   orderID,
		"payment_id": payment.ID,
		"method":     payment.Method,
		"amount":     payment.Amount,
		"tip":        payment.Tip,
	})
	s.track(ctx, requestID, models.CRMPaymentCreated, map[string]interface{}{
		"orderId":   orderID,
		"paymentId": payment.ID,
		"method":    payment.Method,
		"amount":    payment.Amount,
		"tip":       payment.Tip,
	})

	outcome, gwErr := s.charge(ctx, &payment)
	return s.settle(ctx, payment, outcome, gwErr, requestID)
}

// ConfirmPayment re-verifies a pending payment, typically after the
// customer returned from a redirect based provider.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID uuid.UUID, requestID string) (*PaymentResult, error) {
	p, err := s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(p.OrderID)
	defer unlock()

	// reload under the order lock
	p, err = s.getPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PaymentPending {
		err := conflict(ReasonPaymentNotPending, "")
		s.logFailure("payment_confirm_rejected", "Payment is not pending", requestID, err, map[string]interface{}{
			"payment_id": paymentID,
			"status":     p.Status,
		})
		return nil, err
	}

	outcome, gwErr := s.charge(ctx, p)
	return s.settle(ctx, *p, outcome, gwErr, requestID)
}

func (s *Service) getPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	p, err := s.store.GetPayment(ctx, id)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, &NotFoundError{Reason: ReasonPaymentNotFound, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// charge talks to the gateway within the configured bound. Anything but a
// timely success or pending answer counts as failed.
func (s *Service) charge(ctx context.Context, p *models.Payment) (GatewayResult, error) {
	gctx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()

	if p.IntentRef == "" {
		ref, err := s.gateway.Initiate(gctx, p.Payable(), p.OrderID, p.Method)
		if err != nil {
			return GatewayResult{Status: models.PaymentFailed}, gatewayError(gctx, "initiate", p.ID, err)
		}
		p.IntentRef = ref
	}

	res, err := s.gateway.Verify(gctx, p.IntentRef)
	if err != nil {
		return GatewayResult{Status: models.PaymentFailed}, gatewayError(gctx, "verify", p.ID, err)
	}
	switch res.Status {
	case models.PaymentSuccess, models.PaymentPending:
		return res, nil
	default:
		res.Status = models.PaymentFailed
		return res, &GatewayError{Op: "verify", PaymentID: p.ID, Err: ErrPaymentDeclined}
	}
}

func gatewayError(gctx context.Context, op string, paymentID uuid.UUID, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	return &GatewayError{Op: op, PaymentID: paymentID, Err: err}
}

// settle records the gateway outcome. A success moves the order to paid in
// the same transaction that marks the payment successful.
func (s *Service) settle(ctx context.Context, payment models.Payment, outcome GatewayResult, gwErr error, requestID string) (*PaymentResult, error) {
	// the outcome must be stored even when the caller went away
	sctx := context.WithoutCancel(ctx)

	var (
		result  models.Payment
		order   models.Order
		prev    models.OrderStatus
		events  []models.Event
		lateErr error
	)
	err := s.store.WithTx(sctx, func(tx Tx) error {
		p, err := tx.Payments().Lock(sctx, payment.ID)
		if errors.Is(err, ErrPaymentNotFound) {
			return &NotFoundError{Reason: ReasonPaymentNotFound, ID: payment.ID}
		}
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}
		if p.Status != models.PaymentPending {
			return conflict(ReasonPaymentNotPending, "")
		}
		p.IntentRef = payment.IntentRef

		current, err := s.lockOrder(sctx, tx, payment.OrderID)
		if err != nil {
			return err
		}
		order, prev = *current, current.Status

		switch {
		case gwErr != nil:
			p.Status = models.PaymentFailed
		case outcome.Status == models.PaymentSuccess:
			lateErr = CheckPayable(*current)
			if lateErr == nil && current.Total != p.Amount {
				lateErr = conflict(ReasonOrderChanged, current.Status)
			}
			if lateErr != nil {
				// the money was captured but the order can no longer take it
				p.Status = models.PaymentFailed
				p.TransactionID = outcome.TransactionID
				break
			}
			next, evs, err := Apply(*current, Pay{Method: p.Method, Tip: p.Tip}, s.env())
			if err != nil {
				return err
			}
			if err := tx.Orders().Update(sctx, &next); err != nil {
				return fmt.Errorf("failed to update order: %w", err)
			}
			if err := tx.Orders().AppendStatusLog(sctx, next.ID, s.logEntry(next.Status, actorPayment, string(p.Method))); err != nil {
				return fmt.Errorf("failed to log status: %w", err)
			}
			confirmedAt := s.now()
			p.Status = models.PaymentSuccess
			p.TransactionID = outcome.TransactionID
			p.ConfirmedAt = &confirmedAt
			order, events = next, evs
		}

		if err := tx.Payments().Update(sctx, p); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		result = *p
		return nil
	})
	if err != nil {
		s.logFailure("payment_settle_failed", "Failed to record payment outcome", requestID, err, map[string]interface{}{
			"payment_id": payment.ID,
			"order_id":   payment.OrderID,
		})
		return nil, err
	}

	fields := map[string]interface{}{
		"payment_id": result.ID,
		"order_id":   result.OrderID,
		"status":     result.Status,
		"payable":    result.Payable(),
	}
	if gwErr != nil {
		s.logger.Error("payment_failed", "Payment gateway did not confirm payment", requestID, gwErr, fields)
		return nil, gwErr
	}
	if lateErr != nil {
		fields["transaction_id"] = result.TransactionID
		s.logger.Error("payment_refund_required", "Captured payment no longer matches the order", requestID, lateErr, fields)
		s.track(ctx, requestID, models.CRMPaymentRefundRequired, map[string]interface{}{
			"orderId":       result.OrderID,
			"paymentId":     result.ID,
			"method":        result.Method,
			"amount":        result.Payable(),
			"transactionId": result.TransactionID,
			"reason":        ReasonOf(lateErr),
		})
		return nil, lateErr
	}
	if result.Status == models.PaymentPending {
		s.logger.Info("payment_pending", "Payment awaits confirmation", requestID, fields)
		return &PaymentResult{Payment: result, Order: order, PayableAmount: result.Payable()}, nil
	}

	s.logger.Info("payment_completed", "Order paid", requestID, fields)
	s.dispatch(ctx, requestID, events)
	s.track(ctx, requestID, models.CRMPaymentSuccess, map[string]interface{}{
		"orderId":       result.OrderID,
		"paymentId":     result.ID,
		"method":        result.Method,
		"amount":        result.Amount,
		"tip":           result.Tip,
		"transactionId": result.TransactionID,
	})
	s.track(ctx, requestID, models.CRMOrderStatusChanged, map[string]interface{}{
		"orderId":   order.ID,
		"oldStatus": prev,
		"newStatus": order.Status,
	})
	return &PaymentResult{Payment: result, Order: order, PayableAmount: result.Payable()}, nil
}
