// Package store is the gorm backed data access layer.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"shop-service/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInsufficientStock is returned when a guarded stock decrement matches no row.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories over one database handle.
// Inside Transaction the handle is the transaction itself.
type Store struct {
	db *gorm.DB
}

// New creates a store over db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Product{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderDetail{},
		&model.Payment{},
		&model.Comment{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Transaction runs fn in one database transaction. Any error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Products() *ProductStore     { return &ProductStore{db: s.db} }
func (s *Store) Categories() *CategoryStore { return &CategoryStore{db: s.db} }
func (s *Store) Carts() *CartStore           { return &CartStore{db: s.db} }
func (s *Store) Orders() *OrderStore         { return &OrderStore{db: s.db} }
func (s *Store) Payments() *PaymentStore     { return &PaymentStore{db: s.db} }
func (s *Store) Users() *UserStore           { return &UserStore{db: s.db} }
func (s *Store) Comments() *CommentStore     { return &CommentStore{db: s.db} }

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// translate maps driver errors onto the store sentinels.
func translate(err error, action string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("failed to %s: %w", action, ErrDuplicate)
	default:
		return fmt.Errorf("failed to %s: %w", action, err)
	}
}
