package store

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop-service/internal/model"
)

// ProductStore provides access to products and their stock counters.
type ProductStore struct {
	db *gorm.DB
}

// ProductFilter holds the optional list parameters.
type ProductFilter struct {
	CategoryID *uint
	Keyword    string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Sort       string
	Page       Page
}

var productSorts = map[string]string{
	"price_asc":  "price ASC",
	"price_desc": "price DESC",
	"name_asc":   "name ASC",
	"name_desc":  "name DESC",
	"newest":     "created_at DESC",
}

// Find retrieves a product by id.
func (s *ProductStore) Find(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := s.db.WithContext(ctx).Preload("Category").First(&product, id).Error; err != nil {
		return nil, translate(err, "find product")
	}
	return &product, nil
}

// Lock retrieves a product and holds a row lock until the transaction ends.
func (s *ProductStore) Lock(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, id).Error
	if err != nil {
		return nil, translate(err, "lock product")
	}
	return &product, nil
}

// List returns one page of products matching the filter and the total match count.
func (s *ProductStore) List(ctx context.Context, f ProductFilter) ([]model.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Product{})
	if f.CategoryID != nil {
		query = query.Where("category_id = ?", *f.CategoryID)
	}
	if f.Keyword != "" {
		like := "%" + f.Keyword + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", like, like)
	}
	if f.MinPrice != nil {
		query = query.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		query = query.Where("price <= ?", *f.MaxPrice)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count products")
	}

	order, ok := productSorts[f.Sort]
	if !ok {
		order = "id ASC"
	}
	page := f.Page.Normalize()

	var products []model.Product
	err := query.Preload("Category").
		Order(order).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, translate(err, "list products")
	}
	return products, total, nil
}

// Create saves a new product.
func (s *ProductStore) Create(ctx context.Context, product *model.Product) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error, "create product")
}

// Update writes the named columns of product, or every editable column when none are named.
func (s *ProductStore) Update(ctx context.Context, product *model.Product, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{"Name", "Price", "CategoryID", "Description", "Stock", "ImageURL"}
	}
	result := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", product.ID).
		Select(fields).
		Updates(product)
	if err := result.Error; err != nil {
		return translate(err, "update product")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a product by id.
func (s *ProductStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Product{}, id)
	if err := result.Error; err != nil {
		return translate(err, "delete product")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NameTaken reports whether another product already uses name.
func (s *ProductStore) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "check product name")
	}
	return count > 0, nil
}

// IsReferenced reports whether any cart line or order detail points at the product.
func (s *ProductStore) IsReferenced(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.CartItem{}).Where("product_id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err, "check cart references")
	}
	if count > 0 {
		return true, nil
	}
	if err := s.db.WithContext(ctx).Model(&model.OrderDetail{}).Where("product_id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err, "check order references")
	}
	return count > 0, nil
}

// CountByCategory returns how many products reference the category.
func (s *ProductStore) CountByCategory(ctx context.Context, categoryID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "count category products")
	}
	return count, nil
}

// DecrementStock subtracts qty only while enough stock remains.
func (s *ProductStore) DecrementStock(ctx context.Context, id uint, qty int) error {
	result := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if err := result.Error; err != nil {
		return translate(err, "decrement stock")
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// IncrementStock adds qty back to the product.
func (s *ProductStore) IncrementStock(ctx context.Context, id uint, qty int) error {
	result := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", qty))
	if err := result.Error; err != nil {
		return translate(err, "increment stock")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stock returns the current stock of the products keyed by id.
func (s *ProductStore) Stock(ctx context.Context, ids []uint) (map[uint]int, error) {
	var rows []model.Product
	if err := s.db.WithContext(ctx).Select("id", "stock").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, translate(err, "read stock")
	}
	levels := make(map[uint]int, len(rows))
	for _, p := range rows {
		levels[p.ID] = p.Stock
	}
	return levels, nil
}
