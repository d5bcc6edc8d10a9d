package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/model"
	"shop-service/internal/store"
	"shop-service/pkg/logger"
	"shop-service/prometheus"
)

// OrderService runs the order lifecycle. Every mutating operation is one transaction
// that keeps product stock, order status and payment status consistent.
type OrderService struct {
	store   *store.Store
	catalog *CatalogService
	metrics *prometheus.Metrics
	now     func() time.Time
}

// NewOrderService creates an OrderService.
func NewOrderService(st *store.Store, catalog *CatalogService, metrics *prometheus.Metrics) *OrderService {
	return &OrderService{
		store:   st,
		catalog: catalog,
		metrics: metrics,
		now:     time.Now,
	}
}

// OrderItem is one requested line. Price is what the client believed the unit price was.
type OrderItem struct {
	ProductID uint
	Quantity  int
	Price     *decimal.Decimal
}

// PlaceOrderInput is a direct order request.
type PlaceOrderInput struct {
	Items         []OrderItem
	PaymentMethod model.PaymentMethod
	TotalPrice    *decimal.Decimal
}

// OrderListInput filters ListOrders.
type OrderListInput struct {
	Status model.OrderStatus
	Page   store.Page
}

type orderLine struct {
	productID uint
	quantity  int
}

// PlaceOrder creates an order from explicit items, reserving stock for each line.
func (s *OrderService) PlaceOrder(ctx context.Context, p auth.Principal, in PlaceOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperr.Validation("invalid payment method")
	}

	quantities := make(map[uint]int, len(in.Items))
	for _, item := range in.Items {
		if item.ProductID == 0 {
			return nil, apperr.Validation("product id is required")
		}
		if item.Quantity <= 0 {
			return nil, apperr.Validation(fmt.Sprintf("quantity for product %d must be positive", item.ProductID))
		}
		if item.Quantity > math.MaxInt-quantities[item.ProductID] {
			return nil, apperr.Validation(fmt.Sprintf("quantity for product %d is too large", item.ProductID))
		}
		quantities[item.ProductID] += item.Quantity
	}
	lines := sortedLines(quantities)

	defer s.metrics.TrackDBOperation("place_order")(time.Now())

	var order *model.Order
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		order, err = s.createOrder(ctx, tx, p.UserID, lines, in.PaymentMethod)
		return err
	})
	if err != nil {
		return nil, s.orderFailed(ctx, err)
	}

	s.logPriceMismatch(ctx, order, in)
	s.orderPlaced(ctx, order, lines)
	return order, nil
}

// Checkout turns the caller's whole cart into an order and empties the cart.
func (s *OrderService) Checkout(ctx context.Context, p auth.Principal, method model.PaymentMethod) (*model.Order, error) {
	if !method.Valid() {
		return nil, apperr.Validation("invalid payment method")
	}

	defer s.metrics.TrackDBOperation("checkout")(time.Now())

	var (
		order *model.Order
		lines []orderLine
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		items, err := tx.Carts().ListByUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.Wrap(apperr.KindValidation, ErrEmptyCart, "cart is empty")
		}

		quantities := make(map[uint]int, len(items))
		for _, item := range items {
			quantities[item.ProductID] += item.Quantity
		}
		lines = sortedLines(quantities)

		order, err = s.createOrder(ctx, tx, p.UserID, lines, method)
		if err != nil {
			return err
		}
		return tx.Carts().Clear(ctx, p.UserID)
	})
	if err != nil {
		return nil, s.orderFailed(ctx, err)
	}

	s.orderPlaced(ctx, order, lines)
	return order, nil
}

// createOrder locks the products in ascending id order, prices the lines from the
// locked rows, writes the order with its details, takes the stock and records a
// pending payment. It must run inside a transaction.
func (s *OrderService) createOrder(ctx context.Context, tx *store.Store, userID uint, lines []orderLine, method model.PaymentMethod) (*model.Order, error) {
	details := make([]model.OrderDetail, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		product, err := tx.Products().Lock(ctx, line.productID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, ErrProductNotFound, fmt.Sprintf("product %d not found", line.productID))
		}
		if err != nil {
			return nil, err
		}
		if line.quantity > product.Stock {
			return nil, insufficientStock(product.ID)
		}

		subtotal := product.Price.Mul(decimal.NewFromInt(int64(line.quantity)))
		total = total.Add(subtotal)
		details = append(details, model.OrderDetail{
			ProductID: product.ID,
			Quantity:  line.quantity,
			Price:     product.Price,
			Subtotal:  subtotal,
		})
	}

	order := &model.Order{
		Reference:     newOrderReference(s.now()),
		UserID:        userID,
		TotalPrice:    total,
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		PaymentMethod: method,
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		return nil, err
	}

	for i := range details {
		details[i].OrderID = order.ID
	}
	if err := tx.Orders().CreateDetails(ctx, details); err != nil {
		return nil, err
	}

	productIDs := make([]uint, 0, len(lines))
	for _, line := range lines {
		if err := tx.Products().DecrementStock(ctx, line.productID, line.quantity); err != nil {
			if errors.Is(err, store.ErrInsufficientStock) {
				return nil, insufficientStock(line.productID)
			}
			return nil, err
		}
		productIDs = append(productIDs, line.productID)
	}

	if err := tx.Carts().DeleteProducts(ctx, userID, productIDs); err != nil {
		return nil, err
	}

	if err := tx.Payments().Append(ctx, &model.Payment{
		OrderID: order.ID,
		UserID:  userID,
		Amount:  total,
		Method:  method,
		Status:  model.PaymentPending,
	}); err != nil {
		return nil, err
	}

	order.Details = details
	return order, nil
}

// CancelOrder cancels a pending order and returns its stock. A completed payment is marked refunded.
func (s *OrderService) CancelOrder(ctx context.Context, p auth.Principal, orderID uint) (*model.Order, error) {
	defer s.metrics.TrackDBOperation("cancel_order")(time.Now())

	var (
		order      *model.Order
		from       model.OrderStatus
		payment    model.PaymentStatus
		productIDs []uint
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		order, err = lockOwnedOrder(ctx, tx, p, orderID)
		if err != nil {
			return err
		}
		from, payment = order.Status, order.PaymentStatus
		productIDs, err = s.cancelLocked(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, internalError(ctx, "Failed to cancel order", err)
	}

	s.transitioned(ctx, order, from, payment, productIDs)
	return order, nil
}

// UpdateOrderStatus moves an order along an allowed admin edge.
// Moving to canceled runs the cancellation and returns the stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() || status == model.OrderPending {
		return nil, apperr.Validation("invalid order status")
	}

	defer s.metrics.TrackDBOperation("update_order_status")(time.Now())

	var (
		order      *model.Order
		from       model.OrderStatus
		payment    model.PaymentStatus
		productIDs []uint
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		order, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		from, payment = order.Status, order.PaymentStatus

		if status == model.OrderCanceled {
			productIDs, err = s.cancelLocked(ctx, tx, order)
			return err
		}
		if !order.Status.CanTransitionTo(status) {
			return invalidTransition(fmt.Sprintf("cannot change order status from %s to %s", order.Status, status))
		}
		order.Status = status
		return tx.Orders().UpdateState(ctx, order)
	})
	if err != nil {
		return nil, internalError(ctx, "Failed to update order status", err)
	}

	s.transitioned(ctx, order, from, payment, productIDs)
	return order, nil
}

// ConfirmPayment records a completed payment for a pending payment on a live order.
func (s *OrderService) ConfirmPayment(ctx context.Context, p auth.Principal, orderID uint, method model.PaymentMethod) (*model.Order, error) {
	if !method.Valid() {
		return nil, apperr.Validation("invalid payment method")
	}

	defer s.metrics.TrackDBOperation("confirm_payment")(time.Now())

	var order *model.Order
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		order, err = lockOwnedOrder(ctx, tx, p, orderID)
		if err != nil {
			return err
		}
		if order.Status == model.OrderCanceled {
			return invalidTransition("cannot pay for a canceled order")
		}
		if !order.PaymentStatus.CanTransitionTo(model.PaymentCompleted) {
			return invalidTransition(fmt.Sprintf("payment is already %s", order.PaymentStatus))
		}

		order.PaymentStatus = model.PaymentCompleted
		order.PaymentMethod = method
		if err := tx.Orders().UpdateState(ctx, order); err != nil {
			return err
		}
		return tx.Payments().Append(ctx, &model.Payment{
			OrderID: order.ID,
			UserID:  order.UserID,
			Amount:  order.TotalPrice,
			Method:  method,
			Status:  model.PaymentCompleted,
		})
	})
	if err != nil {
		return nil, internalError(ctx, "Failed to confirm payment", err)
	}

	s.metrics.RecordPayment(string(model.PaymentCompleted))
	logger.FromContext(ctx).Info("Payment confirmed",
		zap.Uint("order_id", order.ID),
		zap.String("payment_method", string(method)))
	return order, nil
}

// FailPayment records a failed payment attempt. Failed is terminal.
func (s *OrderService) FailPayment(ctx context.Context, orderID uint) (*model.Order, error) {
	defer s.metrics.TrackDBOperation("fail_payment")(time.Now())

	var order *model.Order
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		order, err = lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == model.OrderCanceled {
			return invalidTransition("order is canceled")
		}
		if !order.PaymentStatus.CanTransitionTo(model.PaymentFailed) {
			return invalidTransition(fmt.Sprintf("payment is already %s", order.PaymentStatus))
		}

		order.PaymentStatus = model.PaymentFailed
		if err := tx.Orders().UpdateState(ctx, order); err != nil {
			return err
		}
		return tx.Payments().Append(ctx, &model.Payment{
			OrderID: order.ID,
			UserID:  order.UserID,
			Amount:  order.TotalPrice,
			Method:  order.PaymentMethod,
			Status:  model.PaymentFailed,
		})
	})
	if err != nil {
		return nil, internalError(ctx, "Failed to record failed payment", err)
	}

	s.metrics.RecordPayment(string(model.PaymentFailed))
	logger.FromContext(ctx).Warn("Payment failed", zap.Uint("order_id", order.ID))
	return order, nil
}

// RefundPayment refunds a completed payment, returns the stock and cancels the order.
func (s *OrderService) RefundPayment(ctx context.Context, p auth.Principal, orderID uint) (*model.Order, error) {
	defer s.metrics.TrackDBOperation("refund_payment")(time.Now())

	var (
		order      *model.Order
		from       model.OrderStatus
		payment    model.PaymentStatus
		productIDs []uint
	)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		order, err = lockOwnedOrder(ctx, tx, p, orderID)
		if err != nil {
			return err
		}
		if order.Status == model.OrderCanceled {
			return invalidTransition("order is already canceled")
		}
		if !order.PaymentStatus.CanTransitionTo(model.PaymentRefunded) {
			return invalidTransition(fmt.Sprintf("cannot refund a payment that is %s", order.PaymentStatus))
		}
		from, payment = order.Status, order.PaymentStatus

		productIDs, err = restoreStock(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		order.PaymentStatus = model.PaymentRefunded
		order.Status = model.OrderCanceled
		return tx.Orders().UpdateState(ctx, order)
	})
	if err != nil {
		return nil, internalError(ctx, "Failed to refund payment", err)
	}

	s.transitioned(ctx, order, from, payment, productIDs)
	return order, nil
}

// GetOrder returns an order the caller may see, with details.
func (s *OrderService) GetOrder(ctx context.Context, p auth.Principal, orderID uint) (*model.Order, error) {
	order, err := s.store.Orders().Find(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, orderNotFound(orderID)
	}
	if err != nil {
		return nil, internalError(ctx, "Failed to get order", err)
	}
	if !p.CanAccess(order.UserID) {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

// ListOrders lists the caller's orders, or every order for an admin.
func (s *OrderService) ListOrders(ctx context.Context, p auth.Principal, in OrderListInput) ([]model.Order, int64, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, 0, apperr.Validation("invalid order status")
	}

	filter := store.OrderFilter{Status: in.Status, Page: in.Page}
	if !p.IsAdmin() {
		userID := p.UserID
		filter.UserID = &userID
	}

	orders, total, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, 0, internalError(ctx, "Failed to list orders", err)
	}
	return orders, total, nil
}

// Payments returns the payment ledger of an order the caller may see.
func (s *OrderService) Payments(ctx context.Context, p auth.Principal, orderID uint) ([]model.Payment, error) {
	if _, err := s.GetOrder(ctx, p, orderID); err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, internalError(ctx, "Failed to list payments", err)
	}
	return payments, nil
}

// Stats aggregates orders for admins.
func (s *OrderService) Stats(ctx context.Context) (*store.OrderStats, error) {
	stats, err := s.store.Orders().Stats(ctx)
	if err != nil {
		return nil, internalError(ctx, "Failed to load order stats", err)
	}
	return stats, nil
}

// cancelLocked cancels a locked pending order inside the caller's transaction.
func (s *OrderService) cancelLocked(ctx context.Context, tx *store.Store, order *model.Order) ([]uint, error) {
	if order.Status != model.OrderPending {
		return nil, invalidTransition(fmt.Sprintf("only pending orders can be canceled, order is %s", order.Status))
	}

	productIDs, err := restoreStock(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	order.Status = model.OrderCanceled
	if order.PaymentStatus == model.PaymentCompleted {
		order.PaymentStatus = model.PaymentRefunded
	}
	if err := tx.Orders().UpdateState(ctx, order); err != nil {
		return nil, err
	}
	return productIDs, nil
}

// restoreStock gives back the quantity of every line of the order.
func restoreStock(ctx context.Context, tx *store.Store, orderID uint) ([]uint, error) {
	details, err := tx.Orders().Details(ctx, orderID)
	if err != nil {
		return nil, err
	}

	productIDs := make([]uint, 0, len(details))
	for _, d := range details {
		if err := tx.Products().IncrementStock(ctx, d.ProductID, d.Quantity); err != nil {
			return nil, err
		}
		productIDs = append(productIDs, d.ProductID)
	}
	return productIDs, nil
}

func lockOrder(ctx context.Context, tx *store.Store, orderID uint) (*model.Order, error) {
	order, err := tx.Orders().Lock(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, orderNotFound(orderID)
	}
	return order, err
}

// lockOwnedOrder hides orders of other users behind not found.
func lockOwnedOrder(ctx context.Context, tx *store.Store, p auth.Principal, orderID uint) (*model.Order, error) {
	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !p.CanAccess(order.UserID) {
		return nil, orderNotFound(orderID)
	}
	return order, nil
}

func (s *OrderService) orderFailed(ctx context.Context, err error) error {
	if errors.Is(err, ErrInsufficientStock) {
		s.metrics.RecordStockConflict()
	}
	return internalError(ctx, "Failed to place order", err)
}

func (s *OrderService) orderPlaced(ctx context.Context, order *model.Order, lines []orderLine) {
	productIDs := make([]uint, len(lines))
	for i, line := range lines {
		productIDs[i] = line.productID
	}
	s.catalog.StockChanged(ctx, productIDs...)
	s.metrics.RecordOrderPlaced()
	s.metrics.RecordPayment(string(model.PaymentPending))

	logger.FromContext(ctx).Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.Uint("user_id", order.UserID),
		zap.String("total_price", order.TotalPrice.StringFixed(2)),
		zap.Int("lines", len(lines)))
}

func (s *OrderService) transitioned(ctx context.Context, order *model.Order, from model.OrderStatus, payment model.PaymentStatus, productIDs []uint) {
	if len(productIDs) > 0 {
		s.catalog.StockChanged(ctx, productIDs...)
	}
	s.metrics.RecordOrderTransition(string(from), string(order.Status))
	if order.PaymentStatus != payment {
		s.metrics.RecordPayment(string(order.PaymentStatus))
	}

	logger.FromContext(ctx).Info("Order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.String("payment_status", string(order.PaymentStatus)))
}

// logPriceMismatch notes client prices that differ from what was charged.
func (s *OrderService) logPriceMismatch(ctx context.Context, order *model.Order, in PlaceOrderInput) {
	log := logger.FromContext(ctx)
	if in.TotalPrice != nil && !in.TotalPrice.Equal(order.TotalPrice) {
		log.Warn("Client total differs from charged total",
			zap.Uint("order_id", order.ID),
			zap.String("client_total", in.TotalPrice.String()),
			zap.String("charged_total", order.TotalPrice.StringFixed(2)))
	}

	charged := make(map[uint]decimal.Decimal, len(order.Details))
	for _, d := range order.Details {
		charged[d.ProductID] = d.Price
	}
	for _, item := range in.Items {
		if item.Price == nil {
			continue
		}
		if price, ok := charged[item.ProductID]; ok && !item.Price.Equal(price) {
			log.Warn("Client unit price differs from current price",
				zap.Uint("order_id", order.ID),
				zap.Uint("product_id", item.ProductID),
				zap.String("client_price", item.Price.String()),
				zap.String("charged_price", price.StringFixed(2)))
		}
	}
}

func sortedLines(quantities map[uint]int) []orderLine {
	lines := make([]orderLine, 0, len(quantities))
	for id, qty := range quantities {
		lines = append(lines, orderLine{productID: id, quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].productID < lines[j].productID })
	return lines
}

// newOrderReference builds a customer facing reference such as ORD-20240102150405-1A2B3C4D.
func newOrderReference(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102150405"), id[:8])
}

func insufficientStock(productID uint) error {
	return apperr.Wrap(apperr.KindConflict, ErrInsufficientStock, fmt.Sprintf("insufficient stock for product %d", productID))
}

func invalidTransition(msg string) error {
	return apperr.Wrap(apperr.KindConflict, ErrInvalidTransition, msg)
}

func orderNotFound(orderID uint) error {
	return apperr.Wrap(apperr.KindNotFound, ErrOrderNotFound, fmt.Sprintf("order %d not found", orderID))
}
