package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/internal/model"
	"shop-service/internal/store"
	"shop-service/pkg/logger"
)

// CommentService manages product reviews.
type CommentService struct {
	store *store.Store
}

// NewCommentService creates a CommentService.
func NewCommentService(st *store.Store) *CommentService {
	return &CommentService{store: st}
}

// CommentInput holds a new review.
type CommentInput struct {
	ProductID uint
	Rating    int
	Text      string
}

// AddComment saves a review written by the caller.
func (s *CommentService) AddComment(ctx context.Context, p auth.Principal, in CommentInput) (*model.Comment, error) {
	if in.ProductID == 0 {
		return nil, apperr.Validation("product_id is required")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}

	if _, err := findProduct(ctx, s.store, in.ProductID); err != nil {
		return nil, internalError(ctx, "Failed to check product", err)
	}

	comment := &model.Comment{
		UserID:    p.UserID,
		ProductID: in.ProductID,
		Rating:    in.Rating,
		Text:      strings.TrimSpace(in.Text),
	}
	if err := s.store.Comments().Create(ctx, comment); err != nil {
		return nil, internalError(ctx, "Failed to create comment", err)
	}

	logger.FromContext(ctx).Info("Comment added",
		zap.Uint("comment_id", comment.ID),
		zap.Uint("product_id", comment.ProductID),
		zap.Int("rating", comment.Rating))
	return comment, nil
}

// ListComments returns a product's reviews, newest first.
func (s *CommentService) ListComments(ctx context.Context, productID uint) ([]model.Comment, error) {
	if _, err := findProduct(ctx, s.store, productID); err != nil {
		return nil, internalError(ctx, "Failed to check product", err)
	}

	comments, err := s.store.Comments().ListByProduct(ctx, productID)
	if err != nil {
		return nil, internalError(ctx, "Failed to list comments", err)
	}
	return comments, nil
}
