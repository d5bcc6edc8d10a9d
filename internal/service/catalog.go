package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"shop-service/internal/apperr"
	"shop-service/internal/model"
	"shop-service/internal/store"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
)

// ProductCache is the cache-aside store for single product reads.
type ProductCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// CatalogService manages products and categories.
type CatalogService struct {
	store   *store.Store
	cache   ProductCache
	sfGroup singleflight.Group // Prevents cache stampede
	metrics *prometheus.Metrics
}

// NewCatalogService creates a CatalogService. cache may be nil.
func NewCatalogService(st *store.Store, cache ProductCache, metrics *prometheus.Metrics) *CatalogService {
	return &CatalogService{
		store:   st,
		cache:   cache,
		metrics: metrics,
	}
}

// ProductInput holds the fields of a new product.
type ProductInput struct {
	Name        string
	Price       decimal.Decimal
	CategoryID  uint
	Description string
	Stock       int
	ImageURL    string
}

// ProductPatch holds the fields to change; nil fields are kept.
type ProductPatch struct {
	Name        *string
	Price       *decimal.Decimal
	CategoryID  *uint
	Description *string
	Stock       *int
	ImageURL    *string
}

// CategoryInput holds the fields of a category.
type CategoryInput struct {
	Name     string
	ParentID *uint
}

func productCacheKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ListProducts returns one page of products matching the filter.
func (s *CatalogService) ListProducts(ctx context.Context, filter store.ProductFilter) ([]model.Product, int64, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, 0, apperr.Validation("min_price cannot exceed max_price")
	}
	filter.Keyword = strings.TrimSpace(filter.Keyword)

	products, total, err := s.store.Products().List(ctx, filter)
	if err != nil {
		return nil, 0, internalError(ctx, "Failed to list products", err)
	}
	return products, total, nil
}

// GetProduct returns a product, reading through the cache when one is configured.
func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	log := logger.FromContext(ctx)
	key := productCacheKey(id)

	if s.cache != nil {
		var cached model.Product
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			// Continue to database on cache error
			log.Warn("Product cache read failed", zap.Uint("product_id", id), zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	val, err, _ := s.sfGroup.Do("product:"+key, func() (interface{}, error) {
		return s.store.Products().Find(ctx, id)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, productNotFound(id)
	}
	if err != nil {
		return nil, internalError(ctx, "Failed to get product", err)
	}

	product := val.(*model.Product)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, product); err != nil {
			log.Warn("Product cache write failed", zap.Uint("product_id", id), zap.Error(err))
		}
	}
	return product, nil
}

// CreateProduct validates and saves a new product.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*model.Product, error) {
	product := &model.Product{
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
	}
	if err := s.validateProduct(ctx, s.store, product); err != nil {
		return nil, err
	}

	if err := s.store.Products().Create(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("product name already exists")
		}
		return nil, internalError(ctx, "Failed to create product", err)
	}

	s.metrics.UpdateProductInventory(product.ID, product.Stock)
	logger.FromContext(ctx).Info("Product created", zap.Uint("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct applies a partial update to a product. The row stays locked
// between read and write so concurrent orders keep their stock decrements.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*model.Product, error) {
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		product, err := tx.Products().Lock(ctx, id)
		if err != nil {
			return err
		}

		var fields []string
		if patch.Name != nil {
			product.Name = strings.TrimSpace(*patch.Name)
			fields = append(fields, "Name")
		}
		if patch.Price != nil {
			product.Price = *patch.Price
			fields = append(fields, "Price")
		}
		if patch.CategoryID != nil {
			product.CategoryID = *patch.CategoryID
			fields = append(fields, "CategoryID")
		}
		if patch.Description != nil {
			product.Description = *patch.Description
			fields = append(fields, "Description")
		}
		if patch.Stock != nil {
			product.Stock = *patch.Stock
			fields = append(fields, "Stock")
		}
		if patch.ImageURL != nil {
			product.ImageURL = *patch.ImageURL
			fields = append(fields, "ImageURL")
		}
		if len(fields) == 0 {
			return nil
		}

		if err := s.validateProduct(ctx, tx, product); err != nil {
			return err
		}
		return tx.Products().Update(ctx, product, fields...)
	})
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		return nil, productNotFound(id)
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperr.Conflict("product name already exists")
	default:
		return nil, internalError(ctx, "Failed to update product", err)
	}

	s.StockChanged(ctx, id)
	return s.GetProduct(ctx, id)
}

// DeleteProduct removes a product that no cart or order references.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := tx.Products().Lock(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return productNotFound(id)
			}
			return err
		}
		referenced, err := tx.Products().IsReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return apperr.Conflict("product is referenced by a cart or an order")
		}
		return tx.Products().Delete(ctx, id)
	})
	if err != nil {
		return internalError(ctx, "Failed to delete product", err)
	}

	s.invalidate(ctx, id)
	s.metrics.DeleteProductInventory(id)
	logger.FromContext(ctx).Info("Product deleted", zap.Uint("product_id", id))
	return nil
}

// StockChanged drops cached copies of the products and refreshes their inventory gauges.
func (s *CatalogService) StockChanged(ctx context.Context, ids ...uint) {
	if len(ids) == 0 {
		return
	}
	s.invalidate(ctx, ids...)

	if s.metrics == nil {
		return
	}
	levels, err := s.store.Products().Stock(ctx, ids)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to refresh inventory gauge", zap.Error(err))
		return
	}
	for id, stock := range levels {
		s.metrics.UpdateProductInventory(id, stock)
	}
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...uint) {
	if s.cache == nil {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productCacheKey(id)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logger.FromContext(ctx).Warn("Product cache invalidation failed", zap.Uints("product_ids", ids), zap.Error(err))
	}
}

func (s *CatalogService) validateProduct(ctx context.Context, st *store.Store, p *model.Product) error {
	if p.Name == "" {
		return apperr.Validation("product name is required")
	}
	if !p.Price.IsPositive() {
		return apperr.Validation("price must be greater than 0")
	}
	if !p.Price.Equal(p.Price.Round(2)) {
		return apperr.Validation("price cannot have more than 2 decimal places")
	}
	if p.Stock < 0 {
		return apperr.Validation("stock cannot be negative")
	}
	if p.CategoryID == 0 {
		return apperr.Validation("category_id is required")
	}

	exists, err := st.Categories().Exists(ctx, p.CategoryID)
	if err != nil {
		return internalError(ctx, "Failed to check category", err)
	}
	if !exists {
		return apperr.Validation(fmt.Sprintf("category %d does not exist", p.CategoryID))
	}

	taken, err := st.Products().NameTaken(ctx, p.Name, p.ID)
	if err != nil {
		return internalError(ctx, "Failed to check product name", err)
	}
	if taken {
		return apperr.Conflict("product name already exists")
	}
	return nil
}

// ListCategories returns one page of categories ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context, page store.Page) ([]model.Category, int64, error) {
	categories, total, err := s.store.Categories().List(ctx, page)
	if err != nil {
		return nil, 0, internalError(ctx, "Failed to list categories", err)
	}
	return categories, total, nil
}

// GetCategory returns a category by id.
func (s *CatalogService) GetCategory(ctx context.Context, id uint) (*model.Category, error) {
	category, err := s.store.Categories().Find(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, categoryNotFound(id)
	}
	if err != nil {
		return nil, internalError(ctx, "Failed to get category", err)
	}
	return category, nil
}

// CreateCategory validates and saves a new category.
func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	category := &model.Category{Name: strings.TrimSpace(in.Name), ParentID: in.ParentID}
	if err := s.validateCategory(ctx, category); err != nil {
		return nil, err
	}

	if err := s.store.Categories().Create(ctx, category); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("category name already exists")
		}
		return nil, internalError(ctx, "Failed to create category", err)
	}
	return category, nil
}

// UpdateCategory replaces the name and parent of a category.
func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*model.Category, error) {
	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = strings.TrimSpace(in.Name)
	category.ParentID = in.ParentID
	if err := s.validateCategory(ctx, category); err != nil {
		return nil, err
	}

	if err := s.store.Categories().Update(ctx, category); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("category name already exists")
		}
		return nil, internalError(ctx, "Failed to update category", err)
	}
	return category, nil
}

// DeleteCategory removes a category no product references. Children become roots.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		count, err := tx.Products().CountByCategory(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("category still has products")
		}
		if err := tx.Categories().Delete(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return categoryNotFound(id)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return internalError(ctx, "Failed to delete category", err)
	}
	return nil
}

func (s *CatalogService) validateCategory(ctx context.Context, c *model.Category) error {
	if c.Name == "" {
		return apperr.Validation("category name is required")
	}

	if c.ParentID != nil {
		if c.ID != 0 && *c.ParentID == c.ID {
			return apperr.Validation("category cannot be its own parent")
		}
		exists, err := s.store.Categories().Exists(ctx, *c.ParentID)
		if err != nil {
			return internalError(ctx, "Failed to check parent category", err)
		}
		if !exists {
			return apperr.Validation(fmt.Sprintf("parent category %d does not exist", *c.ParentID))
		}
	}

	taken, err := s.store.Categories().NameTaken(ctx, c.Name, c.ID)
	if err != nil {
		return internalError(ctx, "Failed to check category name", err)
	}
	if taken {
		return apperr.Conflict("category name already exists")
	}
	return nil
}

func productNotFound(id uint) error {
	return apperr.Wrap(apperr.KindNotFound, ErrProductNotFound, fmt.Sprintf("product %d not found", id))
}

func categoryNotFound(id uint) error {
	return apperr.NotFound(fmt.Sprintf("category %d not found", id))
}
