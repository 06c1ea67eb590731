package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	MethodWebpay    PaymentMethod = "webpay"
	MethodApplePay  PaymentMethod = "applepay"
	MethodGooglePay PaymentMethod = "googlepay"
	MethodPOS       PaymentMethod = "pos"
	MethodCash      PaymentMethod = "cash"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodWebpay, MethodApplePay, MethodGooglePay, MethodPOS, MethodCash:
		return true
	}
	return false
}

// Payment records one payment attempt for an order.
// Amount is the order total at initiation; Tip is charged on top of it.
type Payment struct {
	ID            uuid.UUID     `json:"id"`
	OrderID       uuid.UUID     `json:"orderId"`
	Method        PaymentMethod `json:"method"`
	Amount        int64         `json:"amount"`
	Tip           int64         `json:"tip"`
	Status        PaymentStatus `json:"status"`
	IntentRef     string        `json:"paymentIntentId,omitempty"`
	TransactionID string        `json:"transactionId,omitempty"`
	ConfirmedAt   *time.Time    `json:"confirmedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Payable is the amount actually charged
func (p Payment) Payable() int64 {
	return p.Amount + p.Tip
}
