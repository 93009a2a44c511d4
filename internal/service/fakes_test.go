package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repository"
)

// --- in-memory repositories ---

type memUsers struct {
	mu    sync.Mutex
	users []models.User
}

func (m *memUsers) Create(_ context.Context, u models.User) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return 0, fmt.Errorf("insert user: %w", repository.ErrDuplicate)
		}
	}
	u.ID = len(m.users) + 1
	m.users = append(m.users, u)
	return u.ID, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) GetByID(_ context.Context, id int) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

type memProducts struct {
	products []models.Product
}

func (m *memProducts) Create(_ context.Context, p models.Product) (int, error) {
	p.ID = len(m.products) + 1
	m.products = append(m.products, p)
	return p.ID, nil
}

func (m *memProducts) GetByID(_ context.Context, id int) (*models.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memProducts) List(_ context.Context) ([]models.Product, error) {
	return append([]models.Product(nil), m.products...), nil
}

func (m *memProducts) Count(_ context.Context) (int, error) { return len(m.products), nil }

type memOrders struct {
	mu        sync.Mutex
	byID      map[string]models.Order
	updateErr error
	// beforeUpdate, when set, edits the stored order once ahead of the next
	// status update, as a concurrent writer would.
	beforeUpdate func(stored *models.Order)
}

func newMemOrders() *memOrders { return &memOrders{byID: map[string]models.Order{}} }

func (m *memOrders) Create(_ context.Context, o models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.IdempotencyKey == o.IdempotencyKey {
			return fmt.Errorf("insert order %s: %w", o.ID, repository.ErrDuplicate)
		}
	}
	m.byID[o.ID] = o
	return nil
}

func (m *memOrders) find(match func(models.Order) bool) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if match(o) {
			o := o
			return &o
		}
	}
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*models.Order, error) {
	return m.find(func(o models.Order) bool { return o.ID == id }), nil
}

func (m *memOrders) GetByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	return m.find(func(o models.Order) bool { return o.IdempotencyKey == key }), nil
}

func (m *memOrders) GetBySessionID(_ context.Context, sessionID string) (*models.Order, error) {
	return m.find(func(o models.Order) bool { return o.ProviderSessionID != "" && o.ProviderSessionID == sessionID }), nil
}

func (m *memOrders) AttachSession(_ context.Context, id, sessionID, checkoutURL string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Status != models.OrderCreated {
		return fmt.Errorf("order %s: %w", id, repository.ErrStaleStatus)
	}
	o.ProviderSessionID = sessionID
	o.CheckoutURL = checkoutURL
	o.Status = models.OrderPending
	o.UpdatedAt = at
	m.byID[id] = o
	return nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if hook := m.beforeUpdate; hook != nil {
		m.beforeUpdate = nil
		if stored, ok := m.byID[id]; ok {
			hook(&stored)
			m.byID[id] = stored
		}
	}
	o, ok := m.byID[id]
	if !ok || o.Status != from {
		return fmt.Errorf("order %s: %w", id, repository.ErrStaleStatus)
	}
	o.Status = to
	o.UpdatedAt = at
	m.byID[id] = o
	return nil
}

func (m *memOrders) status(id string) models.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id].Status
}

func (m *memOrders) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// --- payment provider ---

type fakeProvider struct {
	mu          sync.Mutex
	createCalls []payment.SessionRequest
	expireCalls []string
	getCalls    int
	sessions    map[string]*payment.Session
	createErr   error
	getErr      error
	event       payment.Event
	eventErr    error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: map[string]*payment.Session{}}
}

func (f *fakeProvider) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := fmt.Sprintf("cs_test_%d", len(f.sessions)+1)
	s := &payment.Session{
		ID:            id,
		URL:           "https://pay.test/" + id,
		Reference:     req.Reference,
		Status:        payment.SessionOpen,
		PaymentStatus: payment.PaymentUnpaid,
		AmountTotal:   req.UnitAmount * req.Quantity,
		Currency:      strings.ToUpper(req.Currency),
		ExpiresAt:     req.ExpiresAt,
	}
	f.sessions[id] = s
	out := *s
	return &out, nil
}

func (f *fakeProvider) GetSession(_ context.Context, id string) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session %s", id)
	}
	out := *s
	return &out, nil
}

func (f *fakeProvider) ExpireSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls = append(f.expireCalls, id)
	if s, ok := f.sessions[id]; ok {
		s.Status = payment.SessionExpired
	}
	return nil
}

func (f *fakeProvider) ParseEvent(_ []byte, _ string) (payment.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.event, f.eventErr
}

// pay marks a session as paid, as the hosted page would.
func (f *fakeProvider) pay(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id].Status = payment.SessionComplete
	f.sessions[id].PaymentStatus = payment.PaymentPaid
}

func (f *fakeProvider) setSession(id string, mutate func(s *payment.Session)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.sessions[id])
}

func (f *fakeProvider) creates() []payment.SessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payment.SessionRequest(nil), f.createCalls...)
}

// --- misc ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) CheckoutOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[outcome]++
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[outcome]
}
