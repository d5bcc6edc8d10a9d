package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop-service/internal/model"
)

// CommentStore provides access to product reviews.
type CommentStore struct {
	db *gorm.DB
}

// Create saves a new comment.
func (s *CommentStore) Create(ctx context.Context, comment *model.Comment) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error, "create comment")
}

// ListByProduct returns a product's comments with their authors, newest first.
func (s *CommentStore) ListByProduct(ctx context.Context, productID uint) ([]model.Comment, error) {
	var comments []model.Comment
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, translate(err, "list comments")
	}
	return comments, nil
}

// DeleteByUser removes every comment written by the user.
func (s *CommentStore) DeleteByUser(ctx context.Context, userID uint) error {
	return translate(s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Comment{}).Error, "delete user comments")
}
