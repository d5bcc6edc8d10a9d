package store

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop-service/internal/model"
)

// OrderStore provides access to orders and their details.
type OrderStore struct {
	db *gorm.DB
}

// OrderFilter restricts a listing; a nil UserID lists every user's orders.
type OrderFilter struct {
	UserID *uint
	Status model.OrderStatus
	Page   Page
}

// OrderStats aggregates orders for the admin dashboard.
type OrderStats struct {
	Count        int64                       `json:"count"`
	Revenue      decimal.Decimal             `json:"revenue"`
	StatusCounts map[model.OrderStatus]int64 `json:"status_counts"`
}

// Create saves the order row only; details are written with CreateDetails.
func (s *OrderStore) Create(ctx context.Context, order *model.Order) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error, "create order")
}

// CreateDetails saves the line items of an order.
func (s *OrderStore) CreateDetails(ctx context.Context, details []model.OrderDetail) error {
	if len(details) == 0 {
		return nil
	}
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(&details).Error, "create order details")
}

// Find retrieves an order with its details and their products.
func (s *OrderStore) Find(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Details.Product").
		First(&order, id).Error
	if err != nil {
		return nil, translate(err, "find order")
	}
	return &order, nil
}

// Lock retrieves the order row and holds a row lock until the transaction ends.
func (s *OrderStore) Lock(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, id).Error
	if err != nil {
		return nil, translate(err, "lock order")
	}
	return &order, nil
}

// Details returns the line items of an order in ascending product order.
func (s *OrderStore) Details(ctx context.Context, orderID uint) ([]model.OrderDetail, error) {
	var details []model.OrderDetail
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_id ASC").
		Find(&details).Error
	if err != nil {
		return nil, translate(err, "list order details")
	}
	return details, nil
}

// List returns one page of orders, newest first, with details preloaded.
func (s *OrderStore) List(ctx context.Context, f OrderFilter) ([]model.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Order{})
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count orders")
	}

	page := f.Page.Normalize()
	var orders []model.Order
	err := query.
		Preload("Details").
		Preload("Details.Product").
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, translate(err, "list orders")
	}
	return orders, total, nil
}

// UpdateState persists the status, payment status and payment method of order.
func (s *OrderStore) UpdateState(ctx context.Context, order *model.Order) error {
	result := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"payment_method": order.PaymentMethod,
		})
	if err := result.Error; err != nil {
		return translate(err, "update order")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasUserOrders reports whether the user has placed any order.
func (s *OrderStore) HasUserOrders(ctx context.Context, userID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return false, translate(err, "count user orders")
	}
	return count > 0, nil
}

// Stats counts orders per status and sums the revenue of orders that were not canceled.
// The sum is done in Go so decimal precision does not depend on the driver.
func (s *OrderStore) Stats(ctx context.Context) (*OrderStats, error) {
	var rows []model.Order
	if err := s.db.WithContext(ctx).Select("id", "status", "total_price").Find(&rows).Error; err != nil {
		return nil, translate(err, "load order stats")
	}

	stats := &OrderStats{
		Count:        int64(len(rows)),
		Revenue:      decimal.Zero,
		StatusCounts: make(map[model.OrderStatus]int64),
	}
	for _, o := range rows {
		stats.StatusCounts[o.Status]++
		if o.Status != model.OrderCanceled {
			stats.Revenue = stats.Revenue.Add(o.TotalPrice)
		}
	}
	return stats, nil
}
