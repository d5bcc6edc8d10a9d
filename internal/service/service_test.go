package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"shop-service/internal/auth"
	"shop-service/internal/model"
	"shop-service/internal/store"
	"shop-service/internal/store/storetest"
	"shop-service/pkg/jwtutil"
	"shop-service/prometheus"
)

type fixture struct {
	db       *gorm.DB
	store    *store.Store
	metrics  *prometheus.Metrics
	cache    *memoryCache
	catalog  *CatalogService
	orders   *OrderService
	carts    *CartService
	users    *UserService
	comments *CommentService

	category *model.Category
	user     auth.Principal
	other    auth.Principal
	admin    auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := storetest.NewDB(t)
	st := store.New(db)
	metrics := prometheus.NewMetrics("test")
	cache := newMemoryCache()
	catalog := NewCatalogService(st, cache, metrics)
	jwt := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "test-secret", ExpirationHours: 1})

	f := &fixture{
		db:       db,
		store:    st,
		metrics:  metrics,
		cache:    cache,
		catalog:  catalog,
		orders:   NewOrderService(st, catalog, metrics),
		carts:    NewCartService(st),
		users:    NewUserService(st, jwt, auth.NewPasswordHasherWithCost(bcrypt.MinCost), metrics),
		comments: NewCommentService(st),
		category: storetest.Category(t, db),
	}
	f.user = principalOf(storetest.User(t, db, model.RoleUser))
	f.other = principalOf(storetest.User(t, db, model.RoleUser))
	f.admin = principalOf(storetest.User(t, db, model.RoleAdmin))
	return f
}

func principalOf(u *model.User) auth.Principal {
	return auth.Principal{UserID: u.ID, Email: u.Email, Role: u.Role}
}

func (f *fixture) product(t *testing.T, price string, stock int) *model.Product {
	t.Helper()
	return storetest.Product(t, f.db, f.category.ID, price, stock)
}

func (f *fixture) stock(t *testing.T, productID uint) int {
	t.Helper()
	return storetest.StockOf(t, f.db, productID)
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func (f *fixture) place(t *testing.T, p auth.Principal, items ...OrderItem) *model.Order {
	t.Helper()
	order, err := f.orders.PlaceOrder(context.Background(), p, PlaceOrderInput{
		Items:         items,
		PaymentMethod: model.MethodCOD,
	})
	require.NoError(t, err)
	return order
}

func storePage(page, limit int) store.Page {
	return store.Page{Page: page, Limit: limit}
}

// memoryCache is an in-process ProductCache that keeps the stored values.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
	hits    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]interface{})}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	*dest.(*model.Product) = *v.(*model.Product)
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := *value.(*model.Product)
	c.entries[key] = &p
	return nil
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
