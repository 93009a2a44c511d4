package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// checkoutSessionEventPrefix covers completed, expired and async payment events.
const checkoutSessionEventPrefix = "checkout.session."

// StripeConfig configures the Stripe Checkout adapter.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string // empty means api.stripe.com
	Timeout       time.Duration
	MaxRetries    int
	Logger        stripe.LeveledLoggerInterface
}

// StripeProvider implements Provider on Stripe Checkout.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
}

var _ Provider = (*StripeProvider)(nil)

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	backendCfg := func(url string) *stripe.BackendConfig {
		bc := &stripe.BackendConfig{
			HTTPClient:        httpClient,
			MaxNetworkRetries: stripe.Int64(int64(cfg.MaxRetries)),
			EnableTelemetry:   stripe.Bool(false),
		}
		if cfg.Logger != nil {
			bc.LeveledLogger = cfg.Logger
		}
		if url != "" {
			bc.URL = stripe.String(url)
		}
		return bc
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg(cfg.APIURL)),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg(cfg.APIURL)),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg("")),
	})
	return &StripeProvider{api: api, webhookSecret: cfg.WebhookSecret, timeout: cfg.Timeout}
}

func (p *StripeProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func (p *StripeProvider) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		ExpiresAt:         stripe.Int64(req.ExpiresAt.Unix()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.AddMetadata("order_id", req.Reference)

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session for %s: %w", req.Reference, classify(err))
	}
	return toSession(s), nil
}

func (p *StripeProvider) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, classify(err))
	}
	return toSession(s), nil
}

func (p *StripeProvider) ExpireSession(ctx context.Context, id string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.api.CheckoutSessions.Expire(id, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", id, classify(err))
	}
	return nil
}

// ParseEvent verifies the Stripe-Signature header and extracts the session id.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (Event, error) {
	if p.webhookSecret == "" {
		return Event{}, ErrWebhookDisabled
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("verify webhook: %w", err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if !strings.HasPrefix(out.Type, checkoutSessionEventPrefix) || ev.Data == nil {
		return out, nil
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", out.Type, err)
	}
	out.SessionID = s.ID
	return out, nil
}

// classify tags invalid requests as ErrRejected. Authentication failures,
// API, rate-limit and connection errors stay retryable.
func classify(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return err
	}
	if serr.Type != stripe.ErrorTypeInvalidRequest {
		return err
	}
	switch serr.HTTPStatusCode {
	case http.StatusUnauthorized, http.StatusTooManyRequests:
		return err
	}
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

func toSession(s *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            s.ID,
		URL:           s.URL,
		Reference:     s.ClientReferenceID,
		Status:        SessionStatus(s.Status),
		PaymentStatus: PaymentStatus(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      strings.ToUpper(string(s.Currency)),
	}
	if s.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return out
}
