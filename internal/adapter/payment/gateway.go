// Package payment contains payment gateway adapters.
package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Arielutooo/restaurant-app/internal/models"
	"github.com/Arielutooo/restaurant-app/internal/services/order"
)

// Simulated stands in for the real providers. Cash and POS settle on the
// first verification; wallet and webpay intents report pending once, the
// way a redirect flow does before the customer returns.
type Simulated struct {
	mu      sync.Mutex
	intents map[string]*intent
	delay   time.Duration
	// DeclineAbove rejects charges larger than this amount when positive
	DeclineAbove int64
}

type intent struct {
	amount   int64
	method   models.PaymentMethod
	verified int
}

func NewSimulated(delay time.Duration) *Simulated {
	return &Simulated{intents: make(map[string]*intent), delay: delay}
}

func (s *Simulated) Initiate(ctx context.Context, amount int64, orderID uuid.UUID, method models.PaymentMethod) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", fmt.Errorf("invalid amount %d", amount)
	}

	ref := fmt.Sprintf("%s_%s_%s", method, orderID.String()[:8], uuid.NewString())
	s.mu.Lock()
	s.intents[ref] = &intent{amount: amount, method: method}
	s.mu.Unlock()
	return ref, nil
}

func (s *Simulated) Verify(ctx context.Context, ref string) (order.GatewayResult, error) {
	if err := s.wait(ctx); err != nil {
		return order.GatewayResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.intents[ref]
	if !ok {
		return order.GatewayResult{}, fmt.Errorf("unknown payment intent %q", ref)
	}
	in.verified++

	if s.DeclineAbove > 0 && in.amount > s.DeclineAbove {
		return order.GatewayResult{Status: models.PaymentFailed}, nil
	}
	if redirects(in.method) && in.verified == 1 {
		return order.GatewayResult{Status: models.PaymentPending}, nil
	}
	return order.GatewayResult{
		Status:        models.PaymentSuccess,
		TransactionID: fmt.Sprintf("txn_%s", uuid.NewString()),
	}, nil
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func redirects(m models.PaymentMethod) bool {
	switch m {
	case models.MethodWebpay, models.MethodApplePay, models.MethodGooglePay:
		return true
	}
	return false
}

// Bounded enforces a deadline on gateways that may ignore their context.
// A call still running when ctx ends is abandoned and reported as ctx.Err().
type Bounded struct {
	Gateway order.PaymentGateway
}

func (b Bounded) Initiate(ctx context.Context, amount int64, orderID uuid.UUID, method models.PaymentMethod) (string, error) {
	type result struct {
		ref string
		err error
	}
	done := make(chan result, 1)
	go func() {
		ref, err := b.Gateway.Initiate(ctx, amount, orderID, method)
		done <- result{ref, err}
	}()

	select {
	case r := <-done:
		return r.ref, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b Bounded) Verify(ctx context.Context, ref string) (order.GatewayResult, error) {
	type result struct {
		res order.GatewayResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := b.Gateway.Verify(ctx, ref)
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		return r.res, r.err
	case <-ctx.Done():
		return order.GatewayResult{}, ctx.Err()
	}
}
