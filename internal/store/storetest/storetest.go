// Package storetest opens migrated in-memory databases and seeds fixtures for tests.
package storetest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shop-service/internal/model"
	"shop-service/internal/store"
)

var seq atomic.Uint64

// NewDB creates an in-memory SQLite database with the full schema.
// A single connection serializes transactions the way row locks do on PostgreSQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database object: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// NewStore is NewDB wrapped in a store.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(NewDB(t))
}

// User inserts a user with the given role.
func User(t *testing.T, db *gorm.DB, role model.Role) *model.User {
	t.Helper()
	n := seq.Add(1)
	user := &model.User{
		Name:     fmt.Sprintf("user-%d", n),
		Email:    fmt.Sprintf("user-%d@example.com", n),
		Password: "hash",
		Role:     role,
		Status:   model.UserActive,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// Category inserts a category with a unique name.
func Category(t *testing.T, db *gorm.DB) *model.Category {
	t.Helper()
	category := &model.Category{Name: fmt.Sprintf("category-%d", seq.Add(1))}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to seed category: %v", err)
	}
	return category
}

// Product inserts a product priced at price (a decimal string) with the given stock.
func Product(t *testing.T, db *gorm.DB, categoryID uint, price string, stock int) *model.Product {
	t.Helper()
	product := &model.Product{
		Name:       fmt.Sprintf("product-%d", seq.Add(1)),
		Price:      decimal.RequireFromString(price),
		CategoryID: categoryID,
		Stock:      stock,
	}
	if err := db.Omit("Category").Create(product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product
}

// StockOf reads the current stock of a product.
func StockOf(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var product model.Product
	if err := db.Select("stock").First(&product, productID).Error; err != nil {
		t.Fatalf("failed to read stock: %v", err)
	}
	return product.Stock
}
