package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/models"
)

type ProductSQLite struct {
	db DBTX
}

func NewProductSQLite(db DBTX) *ProductSQLite { return &ProductSQLite{db: db} }

var _ CatalogRepo = (*ProductSQLite)(nil)

const (
	insertProductSQL     = `INSERT INTO products (name, price, photo_url, seller_id) VALUES (?, ?, ?, ?)`
	selectProductByIDSQL = `SELECT id, name, price, photo_url, seller_id FROM products WHERE id = ?`
	listProductsSQL      = `SELECT id, name, price, photo_url, seller_id FROM products ORDER BY id ASC`
	countProductsSQL     = `SELECT COUNT(*) FROM products`
)

// Create inserts a product; an unknown seller yields ErrForeignKey.
func (r *ProductSQLite) Create(ctx context.Context, p models.Product) (int, error) {
	res, err := r.db.ExecContext(ctx, insertProductSQL, p.Name, p.Price, p.PhotoURL, p.SellerID)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return 0, fmt.Errorf("insert product %q: %w", p.Name, cerr)
		}
		return 0, fmt.Errorf("insert product %q: %w", p.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for product %q: %w", p.Name, err)
	}
	return int(id), nil
}

// GetByID returns (nil, nil) when the product does not exist.
func (r *ProductSQLite) GetByID(ctx context.Context, id int) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRowContext(ctx, selectProductByIDSQL, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.PhotoURL, &p.SellerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select product %d: %w", id, err)
	}
	return &p, nil
}

// List returns all products ordered by id ASC.
func (r *ProductSQLite) List(ctx context.Context) ([]models.Product, error) {
	rows, err := r.db.QueryContext(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	out := make([]models.Product, 0, 16)
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.PhotoURL, &p.SellerID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func (r *ProductSQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countProductsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}
