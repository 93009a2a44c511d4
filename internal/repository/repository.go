package repository

import (
	"context"
	"database/sql"
	"time"

	"storefront/internal/models"
)

// DBTX is the subset of database/sql used by the repositories.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Authorization is the account store.
type Authorization interface {
	Create(ctx context.Context, u models.User) (int, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
}

// CatalogRepo is the product store. Products are listed in insertion order.
type CatalogRepo interface {
	Create(ctx context.Context, p models.Product) (int, error)
	GetByID(ctx context.Context, id int) (*models.Product, error)
	List(ctx context.Context) ([]models.Product, error)
	Count(ctx context.Context) (int, error)
}

// OrderRepo persists checkout attempts. Status changes are compare-and-set:
// they fail with ErrStaleStatus when the stored status is not the expected one.
type OrderRepo interface {
	Create(ctx context.Context, o models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	AttachSession(ctx context.Context, id, sessionID, checkoutURL string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) error
}

// SessionStore remembers revoked login sessions until they would have expired.
type SessionStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Transactor runs fn with repositories bound to a single transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *Repository) error) error
}

type Repository struct {
	Users    Authorization
	Products CatalogRepo
	Orders   OrderRepo
	Sessions SessionStore

	db *sql.DB
}

func NewRepository(db *sql.DB, sessions SessionStore) *Repository {
	r := bind(db)
	r.Sessions = sessions
	r.db = db
	return r
}

func bind(db DBTX) *Repository {
	return &Repository{
		Users:    NewUserRepository(db),
		Products: NewProductSQLite(db),
		Orders:   NewOrderSQLite(db),
	}
}

var _ Transactor = (*Repository)(nil)

// WithTx begins a transaction, runs fn with transaction-bound repositories and
// commits on success or rolls back on error/panic. Panics are rethrown.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	scoped := bind(tx)
	scoped.Sessions = r.Sessions
	return fn(scoped)
}
