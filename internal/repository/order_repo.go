package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
)

type OrderSQLite struct {
	db DBTX
}

func NewOrderSQLite(db DBTX) *OrderSQLite { return &OrderSQLite{db: db} }

var _ OrderRepo = (*OrderSQLite)(nil)

const (
	insertOrderSQL = `
		INSERT INTO orders (id, buyer_id, product_id, idempotency_key, amount_minor, currency,
			quantity, status, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	orderColumns = `id, buyer_id, product_id, idempotency_key, amount_minor, currency, quantity,
		status, provider_session_id, checkout_url, expires_at, created_at, updated_at`

	selectOrderByIDSQL      = `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	selectOrderByKeySQL     = `SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = ?`
	selectOrderBySessionSQL = `SELECT ` + orderColumns + ` FROM orders WHERE provider_session_id = ?`

	attachSessionSQL = `
		UPDATE orders SET provider_session_id = ?, checkout_url = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	updateOrderStatusSQL = `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
)

// Create persists a new order. A reused idempotency key yields ErrDuplicate.
func (r *OrderSQLite) Create(ctx context.Context, o models.Order) error {
	_, err := r.db.ExecContext(ctx, insertOrderSQL,
		o.ID,
		o.BuyerID,
		o.ProductID,
		o.IdempotencyKey,
		o.AmountMinor,
		o.Currency,
		o.Quantity,
		string(o.Status),
		o.ExpiresAt.UTC(),
		o.CreatedAt.UTC(),
		o.UpdatedAt.UTC(),
	)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return fmt.Errorf("insert order %s: %w", o.ID, cerr)
		}
		return fmt.Errorf("insert order %s: %w", o.ID, err)
	}
	return nil
}

// GetByID returns (nil, nil) when the order does not exist.
func (r *OrderSQLite) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.getOne(ctx, selectOrderByIDSQL, id)
}

func (r *OrderSQLite) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	return r.getOne(ctx, selectOrderByKeySQL, key)
}

func (r *OrderSQLite) GetBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.getOne(ctx, selectOrderBySessionSQL, sessionID)
}

// AttachSession records the provider session and moves created -> pending.
func (r *OrderSQLite) AttachSession(ctx context.Context, id, sessionID, checkoutURL string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, attachSessionSQL,
		sessionID, checkoutURL, string(models.OrderPending), at.UTC(), id, string(models.OrderCreated))
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return fmt.Errorf("attach session %s to order %s: %w", sessionID, id, cerr)
		}
		return fmt.Errorf("attach session %s to order %s: %w", sessionID, id, err)
	}
	return expectOneRow(res, id)
}

// UpdateStatus moves an order from -> to; ErrStaleStatus if it was not in from.
func (r *OrderSQLite) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx, updateOrderStatusSQL, string(to), at.UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("update order %s %s->%s: %w", id, from, to, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order %s: %w", id, err)
	}
	if n != 1 {
		return fmt.Errorf("order %s: %w", id, ErrStaleStatus)
	}
	return nil
}

func (r *OrderSQLite) getOne(ctx context.Context, query string, arg any) (*models.Order, error) {
	var (
		o         models.Order
		status    string
		sessionID sql.NullString
		url       sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID,
		&o.BuyerID,
		&o.ProductID,
		&o.IdempotencyKey,
		&o.AmountMinor,
		&o.Currency,
		&o.Quantity,
		&status,
		&sessionID,
		&url,
		&o.ExpiresAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order %v: %w", arg, err)
	}
	o.Status = models.OrderStatus(status)
	o.ProviderSessionID = sessionID.String
	o.CheckoutURL = url.String
	o.ExpiresAt = o.ExpiresAt.UTC()
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}
