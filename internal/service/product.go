package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sofi161/martapp/internal/domain"
	"github.com/sofi161/martapp/internal/repository"
	apperrors "github.com/sofi161/martapp/pkg/errors"
	"github.com/sofi161/martapp/pkg/logger"
	"github.com/sofi161/martapp/pkg/pagination"
	"github.com/sofi161/martapp/pkg/slug"
)

// SearchInput is the public catalog query. Empty fields are not filtered on.
type SearchInput struct {
	Query    string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
	Page     pagination.Params
}

type CreateProductInput struct {
	Name        string   `json:"name" validate:"required,min=2,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Price       int64    `json:"price" validate:"gte=0"`
	Category    string   `json:"category" validate:"required"`
	ImageURLs   []string `json:"image_urls" validate:"max=10,dive,url"`
	Stock       int      `json:"stock" validate:"gte=0"`
}

// UpdateProductInput is a partial update; nil fields keep their value.
type UpdateProductInput struct {
	Name        *string   `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	Price       *int64    `json:"price" validate:"omitempty,gte=0"`
	Category    *string   `json:"category"`
	ImageURLs   []string  `json:"image_urls" validate:"omitempty,max=10,dive,url"`
	Stock       *int      `json:"stock" validate:"omitempty,gte=0"`
}

type UpdateStockInput struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

type ProductService struct {
	products repository.ProductRepository
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func NewProductService(products repository.ProductRepository, logger *slog.Logger) *ProductService {
	return &ProductService{
		products: products,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// Search lists active products.
func (s *ProductService) Search(ctx context.Context, in SearchInput) (pagination.Result[domain.Product], error) {
	status := domain.ProductStatusActive
	filter := repository.ProductFilter{
		Status:   &status,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
		Params:   in.Page,
	}

	if q := strings.TrimSpace(in.Query); q != "" {
		filter.Search = &q
	}
	if in.Category != "" {
		category, ok := domain.NormalizeCategory(in.Category)
		if !ok {
			return pagination.Result[domain.Product]{}, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", in.Category))
		}
		filter.Category = &category
	}
	if (in.MinPrice != nil && *in.MinPrice < 0) || (in.MaxPrice != nil && *in.MaxPrice < 0) {
		return pagination.Result[domain.Product]{}, apperrors.InvalidInput("prices must not be negative")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return pagination.Result[domain.Product]{}, apperrors.InvalidInput("min_price must not exceed max_price")
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("search products: %w", err)
	}
	return pagination.NewResult(products, total, in.Page), nil
}

// GetProduct returns an active product. Inactive products are hidden from
// the public catalog.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, apperrors.NotFound("product", id)
	}
	return p, nil
}

// GetOwnedProduct returns a product of any status to its seller.
func (s *ProductService) GetOwnedProduct(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	return s.owned(ctx, actor, id)
}

func (s *ProductService) ListSellerProducts(ctx context.Context, sellerID string, p pagination.Params) (pagination.Result[domain.Product], error) {
	products, total, err := s.products.List(ctx, repository.ProductFilter{
		SellerID: &sellerID,
		Sort:     repository.SortNewest,
		Params:   p,
	})
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("list seller products: %w", err)
	}
	return pagination.NewResult(products, total, p), nil
}

// Inventory lists the seller's products, lowest stock first.
func (s *ProductService) Inventory(ctx context.Context, sellerID string, p pagination.Params) (pagination.Result[domain.Product], error) {
	products, total, err := s.products.List(ctx, repository.ProductFilter{
		SellerID: &sellerID,
		Sort:     repository.SortStockAsc,
		Params:   p,
	})
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("list inventory: %w", err)
	}
	return pagination.NewResult(products, total, p), nil
}

func (s *ProductService) Create(ctx context.Context, actor domain.Actor, in CreateProductInput) (*domain.Product, error) {
	category, ok := domain.NormalizeCategory(in.Category)
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", in.Category))
	}

	now := s.now()
	id := s.newID()
	p := &domain.Product{
		ID:          id,
		SellerID:    actor.UserID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    category,
		ImageURLs:   in.ImageURLs,
		Stock:       in.Stock,
		Status:      domain.ProductStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	p.Slug = slug.WithSuffix(slug.Generate(p.Name), id)

	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("slug", p.Slug),
	)
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, actor domain.Actor, id string, in UpdateProductInput) (*domain.Product, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
		p.Slug = slug.WithSuffix(slug.Generate(p.Name), p.ID)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Category != nil {
		category, ok := domain.NormalizeCategory(*in.Category)
		if !ok {
			return nil, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", *in.Category))
		}
		p.Category = category
	}
	if in.ImageURLs != nil {
		p.ImageURLs = in.ImageURLs
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}

	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	logger.WithContext(ctx, s.logger).InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// ToggleStatus flips a product between active and inactive.
func (s *ProductService) ToggleStatus(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next := p.ToggledStatus()
	if err := s.products.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	p.Status = next
	p.UpdatedAt = s.now()
	return p, nil
}

func (s *ProductService) UpdateStock(ctx context.Context, actor domain.Actor, id string, stock int) (*domain.Product, error) {
	if stock < 0 {
		return nil, apperrors.InvalidInput("stock must not be negative")
	}
	p, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.products.UpdateStock(ctx, id, stock); err != nil {
		return nil, err
	}
	p.Stock = stock
	p.UpdatedAt = s.now()
	return p, nil
}

// RecordSales applies sold quantities from a created order. It satisfies
// event.SalesRecorder.
func (s *ProductService) RecordSales(ctx context.Context, lines []repository.SaleLine) error {
	if len(lines) == 0 {
		return nil
	}
	if err := s.products.RecordSales(ctx, lines); err != nil {
		return fmt.Errorf("record sales: %w", err)
	}
	return nil
}

func (s *ProductService) find(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// owned loads a product the actor may manage. Admins manage every product.
func (s *ProductService) owned(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !p.OwnedBy(actor.UserID) {
		return nil, apperrors.Forbidden("product belongs to another seller")
	}
	return p, nil
}
