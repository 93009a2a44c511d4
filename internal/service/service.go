package service

import (
	"context"
	"time"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/repository"
)

// Authorization covers accounts and login sessions.
type Authorization interface {
	Register(ctx context.Context, name, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	IssueSession(ctx context.Context, userID int) (*Session, error)
	ParseSession(ctx context.Context, token string) (int, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, userID int) (*models.User, error)
}

// Catalog exposes the product list.
type Catalog interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	SeedProducts(ctx context.Context, seed CatalogSeed) (int, error)
}

// Checkout drives an order through its provider-hosted payment.
type Checkout interface {
	StartCheckout(ctx context.Context, buyerID, productID int, attempt string) (*models.Order, error)
	ConfirmSuccess(ctx context.Context, sessionID string) (*models.Order, error)
	CancelCheckout(ctx context.Context, orderID string) (*models.Order, error)
	HandleProviderEvent(ctx context.Context, payload []byte, signature string) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string, buyerID int) (*models.Order, error)
}

// CheckoutRecorder counts checkout outcomes (created, reused, paid...).
type CheckoutRecorder interface {
	CheckoutOutcome(outcome string)
}

type Service struct {
	Authorization
	Catalog
	Checkout
}

// Options carries the settings the services need besides repositories.
type Options struct {
	SessionSecret string
	SessionTTL    time.Duration

	Provider    payment.Provider
	BaseURL     string
	Currency    string
	CheckoutTTL time.Duration
	Recorder    CheckoutRecorder

	Log *logger.Logger
}

func NewService(repos *repository.Repository, opts Options) *Service {
	return &Service{
		Authorization: NewAuthService(repos.Users, repos.Sessions, repos, opts.SessionSecret, opts.SessionTTL),
		Catalog:       NewCatalogService(repos.Products, repos),
		Checkout: NewCheckoutService(repos.Orders, repos.Products, repos.Users, opts.Provider, CheckoutConfig{
			BaseURL:  opts.BaseURL,
			Currency: opts.Currency,
			TTL:      opts.CheckoutTTL,
			Recorder: opts.Recorder,
			Log:      opts.Log,
		}),
	}
}
