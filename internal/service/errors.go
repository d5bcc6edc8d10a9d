// Package service holds the business operations behind the HTTP handlers.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"shop-service/internal/apperr"
	"shop-service/pkg/logger"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrEmptyCart         = errors.New("cart is empty")
)

// internalError logs err with msg and hides it behind a generic error.
// Errors that already carry a kind pass through unchanged.
func internalError(ctx context.Context, msg string, err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	logger.FromContext(ctx).Error(msg, zap.Error(err))
	return apperr.Internal(err)
}
