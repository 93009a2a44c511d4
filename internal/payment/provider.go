// Package payment talks to the hosted-checkout payment provider.
package payment

import (
	"context"
	"errors"
	"time"
)

// SessionStatus is the provider's lifecycle state of a checkout session.
type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
	SessionExpired  SessionStatus = "expired"
)

// PaymentStatus tells whether money was collected for a session.
type PaymentStatus string

const (
	PaymentPaid              PaymentStatus = "paid"
	PaymentUnpaid            PaymentStatus = "unpaid"
	PaymentNoPaymentRequired PaymentStatus = "no_payment_required"
)

// ErrWebhookDisabled is returned by ParseEvent when no signing secret is configured.
var ErrWebhookDisabled = errors.New("payment: webhook signing secret not configured")

// ErrRejected marks provider errors caused by the request itself. Sending the
// same request again fails the same way.
var ErrRejected = errors.New("payment: request rejected by provider")

// SessionRequest is one hosted checkout for a single line item.
type SessionRequest struct {
	Reference      string // our order id
	IdempotencyKey string
	CustomerEmail  string
	Currency       string // ISO 4217, any case
	ProductName    string
	UnitAmount     int64 // minor units
	Quantity       int64
	SuccessURL     string
	CancelURL      string
	ExpiresAt      time.Time
}

// Session is the provider's view of a checkout session.
type Session struct {
	ID            string
	URL           string
	Reference     string
	Status        SessionStatus
	PaymentStatus PaymentStatus
	AmountTotal   int64
	Currency      string // upper case
	ExpiresAt     time.Time
}

// Paid reports whether the provider considers the session settled.
func (s Session) Paid() bool {
	return s.PaymentStatus == PaymentPaid || s.PaymentStatus == PaymentNoPaymentRequired
}

// Event is a verified provider notification about a checkout session.
type Event struct {
	ID        string
	Type      string
	SessionID string // empty for non checkout-session events
}

// Provider is the external hosted-checkout API.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	ExpireSession(ctx context.Context, id string) error
	ParseEvent(payload []byte, signature string) (Event, error)
}
