package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop-service/internal/model"
)

// PaymentStore is the append-only payment ledger.
type PaymentStore struct {
	db *gorm.DB
}

// Append records a payment attempt.
func (s *PaymentStore) Append(ctx context.Context, payment *model.Payment) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(payment).Error, "record payment")
}

// ListByOrder returns the ledger of an order in insertion order.
func (s *PaymentStore) ListByOrder(ctx context.Context, orderID uint) ([]model.Payment, error) {
	var payments []model.Payment
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, translate(err, "list payments")
	}
	return payments, nil
}
