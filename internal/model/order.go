package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
)

// orderTransitions lists the admin status edges. Only pending may be left.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderConfirmed, OrderShipped, OrderDelivered, OrderCanceled},
}

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an admin may move an order from s to next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the money movement state of an order
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentCompleted: {PaymentRefunded},
}

// CanTransitionTo reports whether payment may move from s to next
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodPaypal       PaymentMethod = "paypal"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCOD          PaymentMethod = "cod"
)

// Valid reports whether m is an accepted payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodPaypal, MethodBankTransfer, MethodCOD:
		return true
	}
	return false
}

// Order is a placed purchase with its line items
type Order struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Reference     string          `json:"reference" gorm:"type:varchar(64);not null;uniqueIndex"`
	UserID        uint            `json:"user_id" gorm:"not null;index"`
	User          *User           `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
	TotalPrice    decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2);not null;check:chk_orders_total,total_price > 0"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(20);not null;default:pending;index"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);not null;default:pending"`
	PaymentMethod PaymentMethod   `json:"payment_method" gorm:"type:varchar(20);not null;default:cod"`
	Details       []OrderDetail   `json:"details,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderDetail is one line item with the unit price captured at purchase time
type OrderDetail struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"not null;index"`
	ProductID uint            `json:"product_id" gorm:"not null;index"`
	Product   *Product        `json:"product,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Quantity  int             `json:"quantity" gorm:"not null;check:chk_order_details_quantity,quantity > 0"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null;check:chk_order_details_price,price > 0"`
	Subtotal  decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
}

func (OrderDetail) TableName() string {
	return "order_details"
}

// Payment is an append-only record of a payment attempt
type Payment struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"not null;index"`
	Order     *Order          `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	UserID    uint            `json:"user_id" gorm:"not null;index"`
	User      *User           `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Method    PaymentMethod   `json:"payment_method" gorm:"column:payment_method;type:varchar(20);not null"`
	Status    PaymentStatus   `json:"status" gorm:"type:varchar(20);not null;default:pending"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}
