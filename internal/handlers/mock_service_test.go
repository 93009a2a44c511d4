package handlers

import (
	"context"
	"net/http"
	"sync"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	registerUser *models.User
	registerErr  error
	authSession  *service.Session
	authErr      error
	issueSession *service.Session
	issueErr     error
	parseID      int
	parseErr     error
	logoutErr    error
	user         *models.User
	userErr      error

	lastRegisterName  string
	lastRegisterEmail string
	lastAuthEmail     string
	lastAuthPassword  string
	lastParseToken    string
	lastLogoutToken   string
}

func (m *mockAuth) Register(_ context.Context, name, email, password string) (*models.User, error) {
	m.lastRegisterName = name
	m.lastRegisterEmail = email
	return m.registerUser, m.registerErr
}

func (m *mockAuth) Authenticate(_ context.Context, email, password string) (*service.Session, error) {
	m.lastAuthEmail = email
	m.lastAuthPassword = password
	return m.authSession, m.authErr
}

func (m *mockAuth) IssueSession(_ context.Context, userID int) (*service.Session, error) {
	return m.issueSession, m.issueErr
}

func (m *mockAuth) ParseSession(_ context.Context, token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

func (m *mockAuth) Logout(_ context.Context, token string) error {
	m.lastLogoutToken = token
	return m.logoutErr
}

func (m *mockAuth) CurrentUser(_ context.Context, userID int) (*models.User, error) {
	return m.user, m.userErr
}

type mockCatalog struct {
	products []models.Product
	listErr  error
	product  *models.Product
	getErr   error
}

func (m *mockCatalog) ListProducts(_ context.Context) ([]models.Product, error) {
	return m.products, m.listErr
}

func (m *mockCatalog) GetProduct(_ context.Context, id int) (*models.Product, error) {
	return m.product, m.getErr
}

func (m *mockCatalog) SeedProducts(_ context.Context, seed service.CatalogSeed) (int, error) {
	return len(seed.Products), nil
}

type mockCheckout struct {
	mu sync.Mutex

	startOrder   *models.Order
	startErr     error
	confirmOrder *models.Order
	confirmErr   error
	cancelOrder  *models.Order
	cancelErr    error
	eventOrder   *models.Order
	eventErr     error
	// orders is served by GetOrder in sequence; the last one repeats.
	orders   []*models.Order
	getErr   error
	getCalls int

	lastBuyer     int
	lastProduct   int
	lastAttempt   string
	lastSessionID string
	lastOrderID   string
	lastPayload   []byte
	lastSignature string
}

func (m *mockCheckout) StartCheckout(_ context.Context, buyerID, productID int, attempt string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBuyer, m.lastProduct, m.lastAttempt = buyerID, productID, attempt
	return m.startOrder, m.startErr
}

func (m *mockCheckout) ConfirmSuccess(_ context.Context, sessionID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSessionID = sessionID
	return m.confirmOrder, m.confirmErr
}

func (m *mockCheckout) CancelCheckout(_ context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOrderID = orderID
	return m.cancelOrder, m.cancelErr
}

func (m *mockCheckout) HandleProviderEvent(_ context.Context, payload []byte, signature string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPayload, m.lastSignature = payload, signature
	return m.eventOrder, m.eventErr
}

func (m *mockCheckout) GetOrder(_ context.Context, orderID string, buyerID int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOrderID, m.lastBuyer = orderID, buyerID
	if m.getErr != nil {
		return nil, m.getErr
	}
	if len(m.orders) == 0 {
		return nil, service.ErrOrderNotFound
	}
	i := m.getCalls
	if i >= len(m.orders) {
		i = len(m.orders) - 1
	}
	m.getCalls++
	o := *m.orders[i]
	return &o, nil
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service, opts ...Option) *gin.Engine {
	h := NewHandler(s, nil, opts...)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

// newTestService fills every interface so that routes can be hit without panics.
func newTestService(auth *mockAuth, catalog *mockCatalog, checkout *mockCheckout) *service.Service {
	if auth == nil {
		auth = &mockAuth{parseErr: service.ErrInvalidToken}
	}
	if catalog == nil {
		catalog = &mockCatalog{}
	}
	if checkout == nil {
		checkout = &mockCheckout{}
	}
	return &service.Service{Authorization: auth, Catalog: catalog, Checkout: checkout}
}

// loggedIn returns an auth mock accepting any session cookie for userID.
func loggedIn(userID int) *mockAuth {
	return &mockAuth{
		parseID: userID,
		user:    &models.User{ID: userID, Name: "alice", Email: "a@x.com"},
	}
}

func sessionCookieHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Cookie", sessionCookie+"="+token)
	}
	return h
}
