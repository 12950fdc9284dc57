package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "cardvault/internal/errors"
	"cardvault/internal/model"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user. A taken email yields ErrEmailTaken.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return apperrors.ErrEmailTaken
		}
		return translateError(err, nil)
	}
	return nil
}

// Update updates an existing user.
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		if isDuplicateKey(err) {
			return apperrors.ErrEmailTaken
		}
		return translateError(err, nil)
	}
	return nil
}

// FindByID finds a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, translateError(err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

// FindByEmail finds a user by email.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

// ExistsByEmail reports whether email is registered.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, translateError(err, nil)
	}
	return count > 0, nil
}

// Delete removes a user.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.User{})
	if res.Error != nil {
		return translateError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// List returns one page of users ordered by creation time.
func (r *userRepository) List(ctx context.Context, page model.Page) (*model.PageResult[model.User], error) {
	page = page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, translateError(err, nil)
	}

	var users []model.User
	if err := r.db.WithContext(ctx).
		Order("created_at").Order("id").
		Offset(page.Offset()).Limit(page.Size).
		Find(&users).Error; err != nil {
		return nil, translateError(err, nil)
	}

	return &model.PageResult[model.User]{Items: users, Total: total, Page: page.Number, Size: page.Size}, nil
}
