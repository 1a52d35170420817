package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/pkg/database"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Create inserts a user and fills in the generated id and timestamp.
func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	model := domain.UserModel{
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return r.handleError(ctx, user, err)
	}

	user.ID = model.ID
	user.CreatedAt = model.CreatedAt
	return nil
}

// List returns all users, oldest first.
func (r *GormUserRepository) List(ctx context.Context) ([]domain.User, error) {
	var models []domain.UserModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(models))
	for i := range models {
		users = append(users, *models[i].ToDomain())
	}
	return users, nil
}

// Exists reports whether a user with the given id exists.
func (r *GormUserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	return userExists(r.db.WithContext(ctx), id)
}

func userExists(tx *gorm.DB, id int64) (bool, error) {
	var count int64
	if err := tx.Model(&domain.UserModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// handleError converts unique violations on users into domain errors.
// Translated errors no longer name the index, so the colliding column is
// looked up.
func (r *GormUserRepository) handleError(ctx context.Context, user *domain.User, err error) error {
	if !database.IsUniqueViolation(err) {
		return err
	}

	var count int64
	if e := r.db.WithContext(ctx).Model(&domain.UserModel{}).
		Where("username = ?", user.Username).
		Count(&count).Error; e != nil {
		return err
	}
	if count > 0 {
		return ErrUsernameExists
	}
	return ErrEmailExists
}

var _ UserRepository = (*GormUserRepository)(nil)
