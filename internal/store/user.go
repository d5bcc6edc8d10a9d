package store

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"shop-service/internal/model"
)

// UserStore provides access to user accounts.
type UserStore struct {
	db *gorm.DB
}

// Find retrieves a user by id.
func (s *UserStore) Find(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "find user")
	}
	return &user, nil
}

// FindByEmail retrieves a user by email, case-insensitively.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&user).Error
	if err != nil {
		return nil, translate(err, "find user by email")
	}
	return &user, nil
}

// List returns one page of users ordered by id and the total count.
func (s *UserStore) List(ctx context.Context, page Page) ([]model.User, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count users")
	}

	page = page.Normalize()
	var users []model.User
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, translate(err, "list users")
	}
	return users, total, nil
}

// Create saves a new user.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error, "create user")
}

// Update writes the profile, role and status columns of user.
func (s *UserStore) Update(ctx context.Context, user *model.User) error {
	result := s.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", user.ID).
		Select("Name", "Email", "Password", "Role", "Status").
		Updates(user)
	if err := result.Error; err != nil {
		return translate(err, "update user")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user by id.
func (s *UserStore) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.User{}, id)
	if err := result.Error; err != nil {
		return translate(err, "delete user")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// EmailTaken reports whether another user already uses email.
func (s *UserStore) EmailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("LOWER(email) = ? AND id <> ?", strings.ToLower(email), excludeID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "check email")
	}
	return count > 0, nil
}
