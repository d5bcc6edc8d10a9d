package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"shop-service/internal/model"
	"shop-service/internal/service"
)

type orderItemRequest struct {
	ProductID uint             `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
}

type placeOrderRequest struct {
	Items         []orderItemRequest  `json:"items"`
	TotalPrice    *decimal.Decimal    `json:"totalPrice"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
}

type paymentRequest struct {
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
}

type orderStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

type orderCreatedResponse struct {
	OrderID    uint            `json:"orderId"`
	Reference  string          `json:"reference"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// ListOrders returns the caller's orders, or every order for an admin.
func (h *Handler) ListOrders(c echo.Context) error {
	page := pageFrom(c)
	orders, total, err := h.orders.ListOrders(c.Request().Context(), principal(c), service.OrderListInput{
		Status: model.OrderStatus(c.QueryParam("status")),
		Page:   page,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newListResponse(orders, total, page))
}

// GetOrder returns one order with its lines.
func (h *Handler) GetOrder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.GetOrder(c.Request().Context(), principal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// PlaceOrder creates an order from the request items.
func (h *Handler) PlaceOrder(c echo.Context) error {
	var req placeOrderRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	in := service.PlaceOrderInput{
		Items:         make([]service.OrderItem, len(req.Items)),
		PaymentMethod: req.PaymentMethod,
		TotalPrice:    req.TotalPrice,
	}
	for i, item := range req.Items {
		in.Items[i] = service.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price}
	}

	order, err := h.orders.PlaceOrder(c.Request().Context(), principal(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newOrderCreated(order))
}

// Checkout creates an order from the caller's cart.
func (h *Handler) Checkout(c echo.Context) error {
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.Checkout(c.Request().Context(), principal(c), req.PaymentMethod)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newOrderCreated(order))
}

// UpdateOrderStatus moves an order to a new status.
func (h *Handler) UpdateOrderStatus(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req orderStatusRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.UpdateOrderStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// CancelOrder cancels a pending order.
func (h *Handler) CancelOrder(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.CancelOrder(c.Request().Context(), principal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// ConfirmPayment marks the order's payment completed.
func (h *Handler) ConfirmPayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.ConfirmPayment(c.Request().Context(), principal(c), id, req.PaymentMethod)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// FailPayment marks the order's payment failed.
func (h *Handler) FailPayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.FailPayment(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// RefundPayment refunds a completed payment.
func (h *Handler) RefundPayment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	order, err := h.orders.RefundPayment(c.Request().Context(), principal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// ListPayments returns the payment ledger of an order.
func (h *Handler) ListPayments(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	payments, err := h.orders.Payments(c.Request().Context(), principal(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}

func newOrderCreated(order *model.Order) orderCreatedResponse {
	return orderCreatedResponse{
		OrderID:    order.ID,
		Reference:  order.Reference,
		TotalPrice: order.TotalPrice,
	}
}
