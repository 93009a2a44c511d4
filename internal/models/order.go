package models

import "time"

// OrderStatus is the lifecycle state of a checkout attempt.
type OrderStatus string

const (
	OrderCreated  OrderStatus = "created"
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderCanceled OrderStatus = "canceled"
	OrderExpired  OrderStatus = "expired"
)

// Terminal reports whether no further transition is expected without a
// verified provider status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderPaid, OrderCanceled, OrderExpired:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s -> next is a legal lifecycle step.
// Canceled and expired orders may still become paid: the provider took the
// money, so the verified status wins.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderCreated:
		return next == OrderPending || next == OrderCanceled || next == OrderExpired
	case OrderPending:
		return next == OrderPaid || next == OrderCanceled || next == OrderExpired
	case OrderCanceled, OrderExpired:
		return next == OrderPaid
	default:
		return false
	}
}

// Order is the locally persisted record of one purchase attempt.
type Order struct {
	ID                string      `json:"id"`
	BuyerID           int         `json:"buyer_id"`
	ProductID         int         `json:"product_id"`
	IdempotencyKey    string      `json:"-"`
	AmountMinor       int64       `json:"amount_minor"` // e.g. cents
	Currency          string      `json:"currency"`     // ISO 4217, upper case
	Quantity          int         `json:"quantity"`
	Status            OrderStatus `json:"status"`
	ProviderSessionID string      `json:"provider_session_id,omitempty"`
	CheckoutURL       string      `json:"checkout_url,omitempty"`
	ExpiresAt         time.Time   `json:"expires_at"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Expired reports whether the attempt's window has elapsed at now.
func (o Order) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}
