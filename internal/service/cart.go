package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/model"
	"shop-service/internal/store"
)

// CartService manages the caller's cart.
type CartService struct {
	store *store.Store
}

// NewCartService creates a CartService.
func NewCartService(st *store.Store) *CartService {
	return &CartService{store: st}
}

// CartLine is a cart item with its total at the live price.
type CartLine struct {
	model.CartItem
	LineTotal decimal.Decimal `json:"line_total"`
}

// Cart is the caller's cart with its running total.
type Cart struct {
	Items []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// GetCart returns the caller's cart lines and total.
func (s *CartService) GetCart(ctx context.Context, p auth.Principal) (*Cart, error) {
	items, err := s.store.Carts().ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, internalError(ctx, "Failed to get cart", err)
	}

	cart := &Cart{Items: make([]CartLine, 0, len(items)), Total: decimal.Zero}
	for _, item := range items {
		line := CartLine{CartItem: item, LineTotal: item.LineTotal()}
		cart.Total = cart.Total.Add(line.LineTotal)
		cart.Items = append(cart.Items, line)
	}
	return cart, nil
}

// AddItem adds qty of a product, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, p auth.Principal, productID uint, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be positive")
	}

	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		product, err := findProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		existing, err := tx.Carts().Find(ctx, p.UserID, productID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if qty > product.Stock {
			return insufficientStock(productID)
		}
		total := qty
		if existing != nil {
			total += existing.Quantity
		}
		if total > product.Stock {
			return insufficientStock(productID)
		}

		if existing != nil {
			return tx.Carts().SetQuantity(ctx, p.UserID, productID, total)
		}
		return tx.Carts().Create(ctx, &model.CartItem{UserID: p.UserID, ProductID: productID, Quantity: total})
	})
	if err != nil {
		return internalError(ctx, "Failed to add cart item", err)
	}
	return nil
}

// UpdateItem sets the quantity of an existing line. Zero removes it.
func (s *CartService) UpdateItem(ctx context.Context, p auth.Principal, productID uint, qty int) error {
	if qty < 0 {
		return apperr.Validation("quantity cannot be negative")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, p, productID)
	}

	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		product, err := findProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if qty > product.Stock {
			return insufficientStock(productID)
		}

		err = tx.Carts().SetQuantity(ctx, p.UserID, productID, qty)
		if errors.Is(err, store.ErrNotFound) {
			return cartItemNotFound(productID)
		}
		return err
	})
	if err != nil {
		return internalError(ctx, "Failed to update cart item", err)
	}
	return nil
}

// RemoveItem deletes one line.
func (s *CartService) RemoveItem(ctx context.Context, p auth.Principal, productID uint) error {
	err := s.store.Carts().Delete(ctx, p.UserID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return cartItemNotFound(productID)
	}
	if err != nil {
		return internalError(ctx, "Failed to remove cart item", err)
	}
	return nil
}

// Clear empties the caller's cart.
func (s *CartService) Clear(ctx context.Context, p auth.Principal) error {
	if err := s.store.Carts().Clear(ctx, p.UserID); err != nil {
		return internalError(ctx, "Failed to clear cart", err)
	}
	return nil
}

func findProduct(ctx context.Context, st *store.Store, productID uint) (*model.Product, error) {
	product, err := st.Products().Find(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, productNotFound(productID)
	}
	return product, err
}

func cartItemNotFound(productID uint) error {
	return apperr.NotFound(fmt.Sprintf("product %d is not in the cart", productID))
}
