package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
)

// CatalogSeed is the out-of-band product list loaded at startup.
type CatalogSeed struct {
	SellerName  string
	SellerEmail string
	Products    []ProductInput
}

type ProductInput struct {
	Name     string
	Price    string
	PhotoURL string
}

type CatalogService struct {
	products repository.CatalogRepo
	tx       repository.Transactor
	now      func() time.Time
}

var _ Catalog = (*CatalogService)(nil)

func NewCatalogService(products repository.CatalogRepo, tx repository.Transactor) *CatalogService {
	return &CatalogService{products: products, tx: tx, now: time.Now}
}

// ListProducts returns every product in insertion order.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.List(ctx)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	if id <= 0 {
		return nil, ErrProductNotFound
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// SeedProducts inserts seed.Products when the catalog is empty and returns
// how many were created.
func (s *CatalogService) SeedProducts(ctx context.Context, seed CatalogSeed) (int, error) {
	if len(seed.Products) == 0 {
		return 0, nil
	}
	for _, p := range seed.Products {
		if strings.TrimSpace(p.Name) == "" {
			return 0, fmt.Errorf("%w: seed product without a name", ErrInvalidInput)
		}
		if _, err := minorUnits(p.Price); err != nil {
			return 0, fmt.Errorf("seed product %q: %w", p.Name, err)
		}
	}
	if s.tx == nil {
		return 0, errors.New("seed products: no transactor configured")
	}

	created := 0
	err := s.tx.WithTx(ctx, func(tx *repository.Repository) error {
		n, err := tx.Products.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		sellerID, err := s.ensureSeller(ctx, tx.Users, seed)
		if err != nil {
			return err
		}
		for _, p := range seed.Products {
			_, err := tx.Products.Create(ctx, models.Product{
				Name:     strings.TrimSpace(p.Name),
				Price:    strings.TrimSpace(p.Price),
				PhotoURL: p.PhotoURL,
				SellerID: sellerID,
			})
			if err != nil {
				if errors.Is(err, repository.ErrForeignKey) {
					return ErrSellerNotFound
				}
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func (s *CatalogService) ensureSeller(ctx context.Context, users repository.Authorization, seed CatalogSeed) (int, error) {
	email, err := normalizeEmail(seed.SellerEmail)
	if err != nil {
		return 0, ErrSellerNotFound
	}
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if u != nil {
		return u.ID, nil
	}
	if strings.TrimSpace(seed.SellerName) == "" {
		return 0, fmt.Errorf("%w: %s", ErrSellerNotFound, email)
	}

	// The seller account cannot be logged into until a password is set.
	hash, err := hashPassword(uuid.NewString())
	if err != nil {
		return 0, err
	}
	return users.Create(ctx, models.User{
		Name:         strings.TrimSpace(seed.SellerName),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
}
