package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop-service/internal/model"
)

// CategoryStore provides access to categories.
type CategoryStore struct {
	db *gorm.DB
}

// Find retrieves a category by id.
func (s *CategoryStore) Find(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, translate(err, "find category")
	}
	return &category, nil
}

// List returns one page of categories ordered by name and the total count.
func (s *CategoryStore) List(ctx context.Context, page Page) ([]model.Category, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Category{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count categories")
	}

	page = page.Normalize()
	var categories []model.Category
	err := s.db.WithContext(ctx).
		Order("name ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&categories).Error
	if err != nil {
		return nil, 0, translate(err, "list categories")
	}
	return categories, total, nil
}

// Create saves a new category.
func (s *CategoryStore) Create(ctx context.Context, category *model.Category) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(category).Error, "create category")
}

// Update writes the name and parent of category.
func (s *CategoryStore) Update(ctx context.Context, category *model.Category) error {
	result := s.db.WithContext(ctx).Model(&model.Category{}).
		Where("id = ?", category.ID).
		Select("Name", "ParentID").
		Updates(category)
	if err := result.Error; err != nil {
		return translate(err, "update category")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete detaches child categories then removes the category.
func (s *CategoryStore) Delete(ctx context.Context, id uint) error {
	db := s.db.WithContext(ctx)
	if err := db.Model(&model.Category{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
		return translate(err, "detach child categories")
	}

	result := db.Delete(&model.Category{}, id)
	if err := result.Error; err != nil {
		return translate(err, "delete category")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NameTaken reports whether another category already uses name.
func (s *CategoryStore) NameTaken(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Category{}).
		Where("name = ? AND id <> ?", name, excludeID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "check category name")
	}
	return count > 0, nil
}

// Exists reports whether a category with id exists.
func (s *CategoryStore) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err, "check category")
	}
	return count > 0, nil
}
