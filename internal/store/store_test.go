package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shop-service/internal/model"
	"shop-service/internal/store"
	"shop-service/internal/store/storetest"
)

func TestPageNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         store.Page
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{name: "zero value", in: store.Page{}, wantPage: 1, wantLimit: 20, wantOffset: 0},
		{name: "second page", in: store.Page{Page: 2, Limit: 10}, wantPage: 2, wantLimit: 10, wantOffset: 10},
		{name: "limit capped", in: store.Page{Page: 1, Limit: 1000}, wantPage: 1, wantLimit: 100, wantOffset: 0},
		{name: "negative page", in: store.Page{Page: -3, Limit: 5}, wantPage: 1, wantLimit: 5, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, tt.in.Offset())
		})
	}
}

func TestProductStock(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	category := storetest.Category(t, db)
	product := storetest.Product(t, db, category.ID, "9.99", 5)

	require.NoError(t, s.Products().DecrementStock(ctx, product.ID, 3))
	assert.Equal(t, 2, storetest.StockOf(t, db, product.ID))

	err := s.Products().DecrementStock(ctx, product.ID, 3)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 2, storetest.StockOf(t, db, product.ID))

	require.NoError(t, s.Products().DecrementStock(ctx, product.ID, 2))
	assert.Equal(t, 0, storetest.StockOf(t, db, product.ID))

	require.NoError(t, s.Products().IncrementStock(ctx, product.ID, 4))
	assert.Equal(t, 4, storetest.StockOf(t, db, product.ID))

	assert.ErrorIs(t, s.Products().IncrementStock(ctx, 9999, 1), store.ErrNotFound)

	levels, err := s.Products().Stock(ctx, []uint{product.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int{product.ID: 4}, levels)
}

func TestDecrementStockGuardsStaleRead(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	category := storetest.Category(t, db)
	product := storetest.Product(t, db, category.ID, "9.99", 5)

	assert.ErrorIs(t, s.Products().DecrementStock(ctx, product.ID, 6), store.ErrInsufficientStock)
	assert.Equal(t, 5, storetest.StockOf(t, db, product.ID))

	// Another writer takes 4 units after the row was read.
	armed := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:sell_four", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "products" {
			return
		}
		armed = false
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context, "UPDATE products SET stock = stock - 4 WHERE id = ?", product.ID)
		require.NoError(t, err)
	}))
	t.Cleanup(func() { _ = db.Callback().Query().Remove("test:sell_four") })

	err := s.Transaction(ctx, func(tx *store.Store) error {
		armed = true
		locked, err := tx.Products().Lock(ctx, product.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 5, locked.Stock)
		return tx.Products().DecrementStock(ctx, product.ID, 3)
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 5, storetest.StockOf(t, db, product.ID))
}

func TestProductLockAndFind(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	category := storetest.Category(t, db)
	product := storetest.Product(t, db, category.ID, "12.50", 1)

	err := s.Transaction(ctx, func(tx *store.Store) error {
		locked, err := tx.Products().Lock(ctx, product.ID)
		if err != nil {
			return err
		}
		assert.True(t, decimal.RequireFromString("12.5").Equal(locked.Price))
		return nil
	})
	require.NoError(t, err)

	found, err := s.Products().Find(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Category)
	assert.Equal(t, category.Name, found.Category.Name)

	_, err = s.Products().Find(ctx, 424242)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductList(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	books := storetest.Category(t, db)
	games := storetest.Category(t, db)
	cheap := storetest.Product(t, db, books.ID, "5.00", 1)
	storetest.Product(t, db, books.ID, "50.00", 1)
	storetest.Product(t, db, games.ID, "20.00", 1)

	products, total, err := s.Products().List(ctx, store.ProductFilter{CategoryID: &books.ID, Sort: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, products, 2)
	assert.Equal(t, cheap.ID, products[0].ID)

	min := decimal.RequireFromString("10")
	max := decimal.RequireFromString("30")
	products, total, err = s.Products().List(ctx, store.ProductFilter{MinPrice: &min, MaxPrice: &max})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, products, 1)
	assert.Equal(t, games.ID, products[0].CategoryID)

	products, total, err = s.Products().List(ctx, store.ProductFilter{Keyword: cheap.Name})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, cheap.ID, products[0].ID)

	products, total, err = s.Products().List(ctx, store.ProductFilter{Page: store.Page{Page: 2, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, products, 1)
}

func TestProductReferences(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	user := storetest.User(t, db, model.RoleUser)
	category := storetest.Category(t, db)
	product := storetest.Product(t, db, category.ID, "1.00", 10)

	referenced, err := s.Products().IsReferenced(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, referenced)

	require.NoError(t, s.Carts().Create(ctx, &model.CartItem{UserID: user.ID, ProductID: product.ID, Quantity: 1}))
	referenced, err = s.Products().IsReferenced(ctx, product.ID)
	require.NoError(t, err)
	assert.True(t, referenced)

	count, err := s.Products().CountByCategory(ctx, category.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProductNameUnique(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	category := storetest.Category(t, db)
	product := storetest.Product(t, db, category.ID, "1.00", 1)

	taken, err := s.Products().NameTaken(ctx, product.Name, 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = s.Products().NameTaken(ctx, product.Name, product.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	dup := &model.Product{Name: product.Name, Price: decimal.NewFromInt(2), CategoryID: category.ID}
	err = s.Products().Create(ctx, dup)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestCategoryDeleteDetachesChildren(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	parent := storetest.Category(t, db)
	child := &model.Category{Name: "child", ParentID: &parent.ID}
	require.NoError(t, s.Categories().Create(ctx, child))

	require.NoError(t, s.Categories().Delete(ctx, parent.ID))

	reloaded, err := s.Categories().Find(ctx, child.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.ParentID)

	assert.ErrorIs(t, s.Categories().Delete(ctx, parent.ID), store.ErrNotFound)
}

func TestCategoryListOrderedByName(t *testing.T) {
	s := storetest.NewStore(t)
	ctx := context.Background()

	for _, name := range []string{"Toys", "Books", "Garden"} {
		require.NoError(t, s.Categories().Create(ctx, &model.Category{Name: name}))
	}

	categories, total, err := s.Categories().List(ctx, store.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, categories, 2)
	assert.Equal(t, "Books", categories[0].Name)
	assert.Equal(t, "Garden", categories[1].Name)
}

func TestCartLines(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	user := storetest.User(t, db, model.RoleUser)
	category := storetest.Category(t, db)
	a := storetest.Product(t, db, category.ID, "1.00", 10)
	b := storetest.Product(t, db, category.ID, "2.00", 10)

	require.NoError(t, s.Carts().Create(ctx, &model.CartItem{UserID: user.ID, ProductID: a.ID, Quantity: 1}))
	require.NoError(t, s.Carts().Create(ctx, &model.CartItem{UserID: user.ID, ProductID: b.ID, Quantity: 2}))

	err := s.Carts().Create(ctx, &model.CartItem{UserID: user.ID, ProductID: a.ID, Quantity: 1})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	require.NoError(t, s.Carts().SetQuantity(ctx, user.ID, a.ID, 4))
	items, err := s.Carts().ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 4, items[0].Quantity)
	require.NotNil(t, items[1].Product)
	assert.Equal(t, b.Name, items[1].Product.Name)

	require.NoError(t, s.Carts().DeleteProducts(ctx, user.ID, []uint{a.ID}))
	_, err = s.Carts().Find(ctx, user.ID, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Carts().Clear(ctx, user.ID))
	items, err = s.Carts().ListByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, s.Carts().Delete(ctx, user.ID, b.ID), store.ErrNotFound)
}

func TestTransactionRollsBack(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	category := storetest.Category(t, db)
	product := storetest.Product(t, db, category.ID, "3.00", 5)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.Products().DecrementStock(ctx, product.ID, 5); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, storetest.StockOf(t, db, product.ID))
}

func TestOrderStoreAndStats(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	user := storetest.User(t, db, model.RoleUser)
	category := storetest.Category(t, db)
	product := storetest.Product(t, db, category.ID, "2.50", 10)

	place := func(ref string, status model.OrderStatus, total string) *model.Order {
		order := &model.Order{
			Reference:     ref,
			UserID:        user.ID,
			TotalPrice:    decimal.RequireFromString(total),
			Status:        status,
			PaymentStatus: model.PaymentPending,
			PaymentMethod: model.MethodCOD,
		}
		require.NoError(t, s.Orders().Create(ctx, order))
		require.NoError(t, s.Orders().CreateDetails(ctx, []model.OrderDetail{{
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  1,
			Price:     order.TotalPrice,
			Subtotal:  order.TotalPrice,
		}}))
		return order
	}

	first := place("ref-1", model.OrderPending, "2.50")
	place("ref-2", model.OrderCanceled, "5.00")
	place("ref-3", model.OrderDelivered, "0.10")

	found, err := s.Orders().Find(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, found.Details, 1)
	require.NotNil(t, found.Details[0].Product)
	assert.Equal(t, product.ID, found.Details[0].Product.ID)

	found.Status = model.OrderConfirmed
	found.PaymentStatus = model.PaymentCompleted
	found.PaymentMethod = model.MethodPaypal
	require.NoError(t, s.Orders().UpdateState(ctx, found))

	locked, err := s.Orders().Lock(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, locked.Status)
	assert.Equal(t, model.PaymentCompleted, locked.PaymentStatus)
	assert.Equal(t, model.MethodPaypal, locked.PaymentMethod)

	orders, total, err := s.Orders().List(ctx, store.OrderFilter{UserID: &user.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orders, 3)

	orders, total, err = s.Orders().List(ctx, store.OrderFilter{Status: model.OrderCanceled})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "ref-2", orders[0].Reference)

	stats, err := s.Orders().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	assert.True(t, decimal.RequireFromString("2.60").Equal(stats.Revenue), stats.Revenue.String())
	assert.Equal(t, int64(1), stats.StatusCounts[model.OrderCanceled])

	has, err := s.Orders().HasUserOrders(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPaymentLedger(t *testing.T) {
	db := storetest.NewDB(t)
	s := store.New(db)
	ctx := context.Background()

	user := storetest.User(t, db, model.RoleUser)
	order := &model.Order{
		Reference:     "ledger",
		UserID:        user.ID,
		TotalPrice:    decimal.NewFromInt(10),
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: model.MethodCOD,
	}
	require.NoError(t, s.Orders().Create(ctx, order))

	for _, status := range []model.PaymentStatus{model.PaymentPending, model.PaymentCompleted} {
		require.NoError(t, s.Payments().Append(ctx, &model.Payment{
			OrderID: order.ID,
			UserID:  user.ID,
			Amount:  order.TotalPrice,
			Method:  model.MethodCOD,
			Status:  status,
		}))
	}

	payments, err := s.Payments().ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, model.PaymentPending, payments[0].Status)
	assert.Equal(t, model.PaymentCompleted, payments[1].Status)
}

func TestUserStore(t *testing.T) {
	s := storetest.NewStore(t)
	ctx := context.Background()

	user := &model.User{Name: "Ann", Email: "Ann@Example.com", Password: "hash", Role: model.RoleUser, Status: model.UserActive}
	require.NoError(t, s.Users().Create(ctx, user))

	found, err := s.Users().FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	taken, err := s.Users().EmailTaken(ctx, "ANN@example.com", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	found.Status = model.UserBlocked
	require.NoError(t, s.Users().Update(ctx, found))
	reloaded, err := s.Users().Find(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsBlocked())
	assert.Equal(t, "hash", reloaded.Password)

	require.NoError(t, s.Users().Delete(ctx, user.ID))
	_, err = s.Users().Find(ctx, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
