package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shop-service/internal/apperr"
	"shop-service/internal/model"
	"shop-service/internal/store"
)

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	valid := ProductInput{
		Name:       "Keyboard",
		Price:      decimal.RequireFromString("49.90"),
		CategoryID: f.category.ID,
		Stock:      3,
	}
	product, err := f.catalog.CreateProduct(ctx, valid)
	require.NoError(t, err)
	assert.NotZero(t, product.ID)

	tests := []struct {
		name   string
		mutate func(in *ProductInput)
		kind   apperr.Kind
	}{
		{name: "missing name", mutate: func(in *ProductInput) { in.Name = "  " }, kind: apperr.KindValidation},
		{name: "zero price", mutate: func(in *ProductInput) { in.Price = decimal.Zero }, kind: apperr.KindValidation},
		{name: "negative price", mutate: func(in *ProductInput) { in.Price = decimal.RequireFromString("-1") }, kind: apperr.KindValidation},
		{name: "three decimals", mutate: func(in *ProductInput) { in.Price = decimal.RequireFromString("1.005") }, kind: apperr.KindValidation},
		{name: "negative stock", mutate: func(in *ProductInput) { in.Stock = -1 }, kind: apperr.KindValidation},
		{name: "no category", mutate: func(in *ProductInput) { in.CategoryID = 0 }, kind: apperr.KindValidation},
		{name: "unknown category", mutate: func(in *ProductInput) { in.CategoryID = 999999 }, kind: apperr.KindValidation},
		{name: "duplicate name", mutate: func(in *ProductInput) {}, kind: apperr.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.catalog.CreateProduct(ctx, in)
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestUpdateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, "5.00", 2)
	taken := f.product(t, "5.00", 2)

	stock := 9
	name := "Renamed"
	updated, err := f.catalog.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &stock, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Stock)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, decimal.NewFromInt(5).Equal(updated.Price))
	require.NotNil(t, updated.Category)
	assert.Equal(t, f.category.ID, updated.Category.ID)
	assert.Equal(t, 9, f.stock(t, p.ID))

	negative := -3
	_, err = f.catalog.UpdateProduct(ctx, p.ID, ProductPatch{Stock: &negative})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	missing := uint(999999)
	_, err = f.catalog.UpdateProduct(ctx, p.ID, ProductPatch{CategoryID: &missing})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.catalog.UpdateProduct(ctx, p.ID, ProductPatch{Name: &taken.Name})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.catalog.UpdateProduct(ctx, 999999, ProductPatch{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateProductKeepsConcurrentStockChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, "5.00", 5)

	// An order for 3 commits right after the update reads the row.
	armed := true
	require.NoError(t, f.db.Callback().Query().After("gorm:query").Register("test:sell_three", func(db *gorm.DB) {
		if !armed || db.Statement.Table != "products" {
			return
		}
		armed = false
		_, err := db.Statement.ConnPool.ExecContext(db.Statement.Context, "UPDATE products SET stock = stock - 3 WHERE id = ?", p.ID)
		require.NoError(t, err)
	}))
	t.Cleanup(func() { _ = f.db.Callback().Query().Remove("test:sell_three") })

	name := "Renamed"
	updated, err := f.catalog.UpdateProduct(ctx, p.ID, ProductPatch{Name: &name})
	require.NoError(t, err)
	assert.False(t, armed)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 2, updated.Stock)
	assert.Equal(t, 2, f.stock(t, p.ID))
}

func TestGetProductReadsThroughCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.product(t, "5.00", 2)

	first, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.hits)

	second, err := f.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)
	assert.Equal(t, first.Name, second.Name)

	_, err = f.catalog.GetProduct(ctx, 999999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCatalogWithoutCache(t *testing.T) {
	f := newFixture(t)
	catalog := NewCatalogService(f.store, nil, nil)

	p := f.product(t, "5.00", 2)
	got, err := catalog.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	catalog.StockChanged(context.Background(), p.ID)
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free := f.product(t, "1.00", 1)
	inCart := f.product(t, "1.00", 1)
	ordered := f.product(t, "1.00", 1)

	require.NoError(t, f.carts.AddItem(ctx, f.user, inCart.ID, 1))
	f.place(t, f.user, OrderItem{ProductID: ordered.ID, Quantity: 1})

	_, err := f.catalog.GetProduct(ctx, free.ID)
	require.NoError(t, err)
	require.NoError(t, f.catalog.DeleteProduct(ctx, free.ID))
	assert.False(t, f.cache.has(productCacheKey(free.ID)))

	_, err = f.catalog.GetProduct(ctx, free.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = f.catalog.DeleteProduct(ctx, inCart.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	err = f.catalog.DeleteProduct(ctx, ordered.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	err = f.catalog.DeleteProduct(ctx, 999999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.product(t, "1.00", 1)
	f.product(t, "5.00", 1)
	f.product(t, "9.00", 1)

	low := decimal.RequireFromString("2")
	high := decimal.RequireFromString("9")
	products, total, err := f.catalog.ListProducts(ctx, store.ProductFilter{MinPrice: &low, MaxPrice: &high, Sort: "price_desc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, products, 2)
	assert.True(t, decimal.NewFromInt(9).Equal(products[0].Price))

	_, _, err = f.catalog.ListProducts(ctx, store.ProductFilter{MinPrice: &high, MaxPrice: &low})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root, err := f.catalog.CreateCategory(ctx, CategoryInput{Name: "Electronics"})
	require.NoError(t, err)

	child, err := f.catalog.CreateCategory(ctx, CategoryInput{Name: "Phones", ParentID: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)

	_, err = f.catalog.CreateCategory(ctx, CategoryInput{Name: "Electronics"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.catalog.CreateCategory(ctx, CategoryInput{Name: ""})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	missing := uint(999999)
	_, err = f.catalog.CreateCategory(ctx, CategoryInput{Name: "Orphan", ParentID: &missing})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.catalog.UpdateCategory(ctx, child.ID, CategoryInput{Name: "Phones", ParentID: &child.ID})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	renamed, err := f.catalog.UpdateCategory(ctx, child.ID, CategoryInput{Name: "Mobile"})
	require.NoError(t, err)
	assert.Equal(t, "Mobile", renamed.Name)
	assert.Nil(t, renamed.ParentID)

	_, err = f.catalog.UpdateCategory(ctx, 999999, CategoryInput{Name: "Nope"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.product(t, "1.00", 1)
	err := f.catalog.DeleteCategory(ctx, f.category.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	parent, err := f.catalog.CreateCategory(ctx, CategoryInput{Name: "Parent"})
	require.NoError(t, err)
	child, err := f.catalog.CreateCategory(ctx, CategoryInput{Name: "Child", ParentID: &parent.ID})
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteCategory(ctx, parent.ID))

	got, err := f.catalog.GetCategory(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)

	err = f.catalog.DeleteCategory(ctx, parent.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	var count int64
	require.NoError(t, f.db.Model(&model.Category{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
