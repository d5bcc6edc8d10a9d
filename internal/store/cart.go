package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop-service/internal/model"
)

// CartStore provides access to per-user cart lines.
type CartStore struct {
	db *gorm.DB
}

// ListByUser returns the user's cart lines with their products, oldest first.
func (s *CartStore) ListByUser(ctx context.Context, userID uint) ([]model.CartItem, error) {
	var items []model.CartItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, translate(err, "list cart")
	}
	return items, nil
}

// Find retrieves the user's line for a product.
func (s *CartStore) Find(ctx context.Context, userID, productID uint) (*model.CartItem, error) {
	var item model.CartItem
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		return nil, translate(err, "find cart item")
	}
	return &item, nil
}

// Create saves a new cart line.
func (s *CartStore) Create(ctx context.Context, item *model.CartItem) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error, "create cart item")
}

// SetQuantity overwrites the quantity of an existing line.
func (s *CartStore) SetQuantity(ctx context.Context, userID, productID uint, qty int) error {
	result := s.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", qty)
	if err := result.Error; err != nil {
		return translate(err, "update cart item")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one line.
func (s *CartStore) Delete(ctx context.Context, userID, productID uint) error {
	result := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&model.CartItem{})
	if err := result.Error; err != nil {
		return translate(err, "delete cart item")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProducts removes the user's lines for the given products.
func (s *CartStore) DeleteProducts(ctx context.Context, userID uint, productIDs []uint) error {
	if len(productIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Delete(&model.CartItem{}).Error
	return translate(err, "delete cart items")
}

// Clear removes every line of the user's cart.
func (s *CartStore) Clear(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.CartItem{}).Error
	return translate(err, "clear cart")
}
