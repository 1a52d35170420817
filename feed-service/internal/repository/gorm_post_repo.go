package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/pkg/database"
)

// GormPostRepository implements PostRepository using GORM.
type GormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GORM-based post repository.
func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

// Create inserts a post for an existing user. New posts always start with
// zero likes regardless of the incoming value.
func (r *GormPostRepository) Create(ctx context.Context, post *domain.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := userExists(tx, post.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}

		model := domain.PostModel{
			UserID:     post.UserID,
			Content:    post.Content,
			LikesCount: 0,
		}
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return err
		}

		post.ID = model.ID
		post.LikesCount = model.LikesCount
		post.CreatedAt = model.CreatedAt
		return nil
	})
}

// GetByID retrieves a post by id.
func (r *GormPostRepository) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	var model domain.PostModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

type postWithAuthorRow struct {
	ID          int64
	UserID      int64
	Content     string
	LikesCount  int64
	CreatedAt   time.Time
	Username    string
	DisplayName string
}

// ListWithAuthors returns every post joined with its author, newest first.
// IsLiked is left false; annotating it is the caller's job.
func (r *GormPostRepository) ListWithAuthors(ctx context.Context) ([]domain.PostWithUser, error) {
	var rows []postWithAuthorRow
	err := r.db.WithContext(ctx).
		Table("posts").
		Select("posts.id, posts.user_id, posts.content, posts.likes_count, posts.created_at, users.username, users.display_name").
		Joins("JOIN users ON users.id = posts.user_id").
		Order("posts.created_at DESC").
		Order("posts.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	posts := make([]domain.PostWithUser, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, domain.PostWithUser{
			Post: domain.Post{
				ID:         row.ID,
				UserID:     row.UserID,
				Content:    row.Content,
				LikesCount: row.LikesCount,
				CreatedAt:  row.CreatedAt,
			},
			User: domain.PostAuthor{
				Username:    row.Username,
				DisplayName: row.DisplayName,
			},
		})
	}
	return posts, nil
}

var _ PostRepository = (*GormPostRepository)(nil)
