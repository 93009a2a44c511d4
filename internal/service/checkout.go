package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// Checkout outcomes reported to the CheckoutRecorder.
const (
	OutcomeCreated       = "created"
	OutcomeReused        = "reused"
	OutcomeProviderError = "provider_error"
	OutcomeRejected      = "provider_rejected"
	OutcomePaid          = "paid"
	OutcomeCanceled      = "canceled"
	OutcomeExpired       = "expired"
)

const (
	defaultCurrency    = "USD"
	defaultCheckoutTTL = time.Hour

	// sessionIDPlaceholder is substituted by the provider on redirect.
	sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

	// minSessionWindow is the shortest expiry the provider accepts for a
	// new hosted session.
	minSessionWindow = 30 * time.Minute
)

type CheckoutConfig struct {
	BaseURL  string
	Currency string
	TTL      time.Duration
	Recorder CheckoutRecorder
	Log      *logger.Logger
}

// CheckoutService owns the order lifecycle. Orders only become paid after a
// provider status query says so.
type CheckoutService struct {
	orders   repository.OrderRepo
	products repository.CatalogRepo
	users    repository.Authorization
	provider payment.Provider
	cfg      CheckoutConfig
	log      *logger.Logger
	now      func() time.Time
}

var _ Checkout = (*CheckoutService)(nil)

func NewCheckoutService(orders repository.OrderRepo, products repository.CatalogRepo, users repository.Authorization,
	provider payment.Provider, cfg CheckoutConfig) *CheckoutService {
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCheckoutTTL
	}
	if cfg.TTL < minSessionWindow {
		cfg.TTL = minSessionWindow
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CheckoutService{
		orders:   orders,
		products: products,
		users:    users,
		provider: provider,
		cfg:      cfg,
		log:      cfg.Log,
		now:      time.Now,
	}
}

// IdempotencyKey identifies one purchase attempt of a product by a buyer.
func IdempotencyKey(buyerID, productID int, attempt string) string {
	return fmt.Sprintf("%d:%d:%s", buyerID, productID, attempt)
}

// StartCheckout creates (or resumes) the order for this attempt and makes
// sure it has a hosted checkout session.
func (s *CheckoutService) StartCheckout(ctx context.Context, buyerID, productID int, attempt string) (*models.Order, error) {
	attempt = strings.TrimSpace(attempt)
	if buyerID <= 0 || attempt == "" {
		return nil, fmt.Errorf("%w: buyer and attempt are required", ErrInvalidInput)
	}
	token, err := uuid.Parse(attempt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed attempt token", ErrInvalidInput)
	}
	attempt = token.String()
	if productID <= 0 {
		return nil, ErrProductNotFound
	}
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	amount, err := minorUnits(product.Price)
	if err != nil {
		return nil, err
	}
	buyer, err := s.users.GetByID(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, ErrUserNotFound
	}

	order, err := s.findOrCreate(ctx, buyerID, product.ID, amount, IdempotencyKey(buyerID, product.ID, attempt))
	if err != nil {
		return nil, err
	}

	now := s.now()
	switch {
	case order.Status == models.OrderPaid || order.Status == models.OrderCanceled:
		return nil, ErrAttemptClosed
	case order.Status == models.OrderExpired:
		return nil, ErrSessionExpired
	case order.Status == models.OrderPending && !order.Expired(now):
		s.record(OutcomeReused)
		return order, nil
	case order.ExpiresAt.Sub(now) < minSessionWindow:
		// Past its expiry, or a created order resumed too late to get a
		// provider session that still ends at its expiry.
		if _, err := s.expireOrPaid(ctx, order); err != nil {
			return nil, err
		}
		return nil, ErrAttemptClosed
	}
	return s.openSession(ctx, order, product, buyer.Email)
}

func (s *CheckoutService) findOrCreate(ctx context.Context, buyerID, productID int, amount int64, key string) (*models.Order, error) {
	existing, err := s.orders.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now().UTC()
	o := models.Order{
		ID:             uuid.NewString(),
		BuyerID:        buyerID,
		ProductID:      productID,
		IdempotencyKey: key,
		AmountMinor:    amount,
		Currency:       s.cfg.Currency,
		Quantity:       1,
		Status:         models.OrderCreated,
		ExpiresAt:      now.Add(s.cfg.TTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, err
		}
		// Concurrent submit of the same attempt won the insert.
		existing, err = s.orders.GetByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("order %s vanished after duplicate insert", key)
		}
		return existing, nil
	}
	return &o, nil
}

func (s *CheckoutService) openSession(ctx context.Context, order *models.Order, product *models.Product, email string) (*models.Order, error) {
	sess, err := s.provider.CreateSession(ctx, payment.SessionRequest{
		Reference:      order.ID,
		IdempotencyKey: order.IdempotencyKey,
		CustomerEmail:  email,
		Currency:       order.Currency,
		ProductName:    product.Name,
		UnitAmount:     order.AmountMinor,
		Quantity:       int64(order.Quantity),
		SuccessURL:     s.cfg.BaseURL + "/order/success?session_id=" + sessionIDPlaceholder,
		CancelURL:      s.cfg.BaseURL + "/order/cancel?order_id=" + url.QueryEscape(order.ID),
		ExpiresAt:      order.ExpiresAt,
	})
	if err != nil {
		return nil, s.providerError(order, "create_session", err)
	}

	now := s.now().UTC()
	if err := s.orders.AttachSession(ctx, order.ID, sess.ID, sess.URL, now); err != nil {
		if !errors.Is(err, repository.ErrStaleStatus) {
			return nil, err
		}
		fresh, ferr := s.orders.GetByID(ctx, order.ID)
		if ferr != nil {
			return nil, ferr
		}
		if fresh == nil || fresh.ProviderSessionID != sess.ID {
			return nil, fmt.Errorf("attach session to order %s: %w", order.ID, err)
		}
		s.record(OutcomeReused)
		return fresh, nil
	}

	order.Status = models.OrderPending
	order.ProviderSessionID = sess.ID
	order.CheckoutURL = sess.URL
	order.UpdatedAt = now
	s.record(OutcomeCreated)
	if s.log != nil {
		s.log.Infow("checkout_session_created", "order_id", order.ID, "session_id", sess.ID, "amount_minor", order.AmountMinor)
	}
	return order, nil
}

// ConfirmSuccess handles the success redirect. Arrivals after the local
// expiry are rejected whatever the provider says.
func (s *CheckoutService) ConfirmSuccess(ctx context.Context, sessionID string) (*models.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || sessionID == sessionIDPlaceholder {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	order, err := s.orders.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == models.OrderPaid {
		return order, nil
	}
	if order.Expired(s.now()) {
		return s.expireOrPaid(ctx, order)
	}
	return s.reconcile(ctx, order)
}

// CancelCheckout handles the cancel redirect. A session the provider reports
// as paid wins over the cancel.
func (s *CheckoutService) CancelCheckout(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	switch order.Status {
	case models.OrderPaid, models.OrderCanceled:
		return order, nil
	case models.OrderExpired:
		return nil, ErrSessionExpired
	}
	if order.Expired(s.now()) {
		return s.expireOrPaid(ctx, order)
	}
	if order.Status == models.OrderCreated || order.ProviderSessionID == "" {
		return s.transition(ctx, order, models.OrderCanceled)
	}

	sess, err := s.provider.GetSession(ctx, order.ProviderSessionID)
	if err != nil {
		return nil, s.providerError(order, "get_session", err)
	}
	if sess.Paid() {
		return s.markPaid(ctx, order, sess)
	}
	if sess.Status == payment.SessionOpen {
		if err := s.provider.ExpireSession(ctx, sess.ID); err != nil && s.log != nil {
			s.log.Warnw("checkout_session_expire_failed", "order_id", order.ID, "session_id", sess.ID, "err", err)
		}
	}
	return s.transition(ctx, order, models.OrderCanceled)
}

// HandleProviderEvent reconciles the order behind a verified webhook event.
// It returns (nil, nil) for events that concern no known order.
func (s *CheckoutService) HandleProviderEvent(ctx context.Context, payload []byte, signature string) (*models.Order, error) {
	ev, err := s.provider.ParseEvent(payload, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if ev.SessionID == "" {
		return nil, nil
	}
	order, err := s.orders.GetBySessionID(ctx, ev.SessionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		if s.log != nil {
			s.log.Warnw("checkout_event_unknown_session", "event_id", ev.ID, "type", ev.Type, "session_id", ev.SessionID)
		}
		return nil, nil
	}
	if order.Status == models.OrderPaid {
		return order, nil
	}
	return s.reconcile(ctx, order)
}

// GetOrder returns the order only to its buyer.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string, buyerID int) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || order.BuyerID != buyerID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// reconcile applies the provider's view of the session to the order.
func (s *CheckoutService) reconcile(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ProviderSessionID == "" {
		return order, nil
	}
	sess, err := s.provider.GetSession(ctx, order.ProviderSessionID)
	if err != nil {
		return nil, s.providerError(order, "get_session", err)
	}
	switch {
	case sess.Paid():
		return s.markPaid(ctx, order, sess)
	case sess.Status == payment.SessionExpired:
		return s.transition(ctx, order, models.OrderExpired)
	default:
		return order, nil
	}
}

func (s *CheckoutService) markPaid(ctx context.Context, order *models.Order, sess *payment.Session) (*models.Order, error) {
	if sess.AmountTotal != order.AmountMinor || !strings.EqualFold(sess.Currency, order.Currency) {
		if s.log != nil {
			s.log.Errorw("checkout_amount_mismatch",
				"order_id", order.ID,
				"session_id", sess.ID,
				"want_amount", order.AmountMinor,
				"got_amount", sess.AmountTotal,
				"want_currency", order.Currency,
				"got_currency", sess.Currency,
			)
		}
		return nil, ErrAmountMismatch
	}
	return s.transition(ctx, order, models.OrderPaid)
}

// transition moves order to next when the lifecycle allows it and returns
// the stored order. A lost compare-and-set is retried once against the
// fresh status.
func (s *CheckoutService) transition(ctx context.Context, order *models.Order, next models.OrderStatus) (*models.Order, error) {
	current := order
	for attempt := 0; attempt < 2; attempt++ {
		if current.Status == next || !current.Status.CanTransitionTo(next) {
			return current, nil
		}
		now := s.now().UTC()
		err := s.orders.UpdateStatus(ctx, current.ID, current.Status, next, now)
		if err == nil {
			if s.log != nil {
				s.log.Infow("order_status_changed", "order_id", current.ID, "from", current.Status, "to", next)
			}
			updated := *current
			updated.Status = next
			updated.UpdatedAt = now
			s.record(string(next))
			return &updated, nil
		}
		if !errors.Is(err, repository.ErrStaleStatus) {
			if s.log != nil {
				s.log.Errorw("order_status_update_failed", "order_id", current.ID, "to", next, "err", err)
			}
			return nil, err
		}
		fresh, ferr := s.orders.GetByID(ctx, current.ID)
		if ferr != nil {
			return nil, ferr
		}
		if fresh == nil {
			return nil, ErrOrderNotFound
		}
		current = fresh
	}
	return current, nil
}

// expireOrPaid marks order expired and answers ErrSessionExpired, unless the
// stored order turned out to be paid concurrently; that order is returned.
func (s *CheckoutService) expireOrPaid(ctx context.Context, order *models.Order) (*models.Order, error) {
	stored, err := s.transition(ctx, order, models.OrderExpired)
	if err != nil {
		return nil, err
	}
	if stored.Status == models.OrderPaid {
		return stored, nil
	}
	return nil, ErrSessionExpired
}

func (s *CheckoutService) providerError(order *models.Order, op string, err error) error {
	if s.log != nil {
		s.log.Errorw("checkout_provider_failed", "op", op, "order_id", order.ID, "err", err)
	}
	if errors.Is(err, payment.ErrRejected) {
		s.record(OutcomeRejected)
		return ErrCheckoutRejected
	}
	s.record(OutcomeProviderError)
	return fmt.Errorf("%w: %s: %v", ErrPaymentProvider, op, err)
}

func (s *CheckoutService) record(outcome string) {
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.CheckoutOutcome(outcome)
	}
}
