package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/pkg/database"
)

// GormLikeRepository implements LikeRepository using GORM.
//
// Both mutations run in one transaction that first takes a row lock on the
// target post, so AddLike/RemoveLike on the same post are serialized while
// different posts proceed independently. SQLite has no row locks; GORM drops
// the FOR UPDATE clause there and the database lock serializes writers
// (open it with _txlock=immediate so transactions queue on busy_timeout).
type GormLikeRepository struct {
	db *gorm.DB
}

// NewGormLikeRepository creates a new GORM-backed like repository.
func NewGormLikeRepository(db *gorm.DB) *GormLikeRepository {
	return &GormLikeRepository{db: db}
}

// lockPost selects the post row FOR UPDATE. It returns ErrPostNotFound when
// the row does not exist.
func lockPost(tx *gorm.DB, postID int64) (*domain.PostModel, error) {
	var post domain.PostModel
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "likes_count").
		First(&post, "id = ?", postID).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// AddLike records that userID likes postID and increments the post's
// likes_count in the same transaction.
func (r *GormLikeRepository) AddLike(ctx context.Context, userID, postID int64) (*domain.Like, error) {
	var like domain.LikeModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := userExists(tx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}

		if _, err := lockPost(tx, postID); err != nil {
			return err
		}

		// Under the post lock no concurrent writer can insert this pair.
		liked, err := hasLiked(tx, userID, postID)
		if err != nil {
			return err
		}
		if liked {
			return ErrLikeExists
		}

		like = domain.LikeModel{UserID: userID, PostID: postID}
		if err := tx.Omit(clause.Associations).Create(&like).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return ErrLikeExists
			}
			return err
		}

		return tx.Model(&domain.PostModel{}).
			Where("id = ?", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}

	return like.ToDomain(), nil
}

// RemoveLike deletes the like for (userID, postID) and decrements the post's
// likes_count in the same transaction. It reports false, without mutating
// anything, when no such like exists.
func (r *GormLikeRepository) RemoveLike(ctx context.Context, userID, postID int64) (bool, error) {
	removed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockPost(tx, postID); err != nil {
			if errors.Is(err, ErrPostNotFound) {
				// Likes cascade with their post; nothing to remove.
				return nil
			}
			return err
		}

		result := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&domain.LikeModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}

		result = tx.Model(&domain.PostModel{}).
			Where("id = ? AND likes_count > 0", postID).
			UpdateColumn("likes_count", gorm.Expr("likes_count - ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCounterUnderflow
		}

		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return removed, nil
}

// HasLiked reports whether userID has liked postID.
func (r *GormLikeRepository) HasLiked(ctx context.Context, userID, postID int64) (bool, error) {
	return hasLiked(r.db.WithContext(ctx), userID, postID)
}

func hasLiked(tx *gorm.DB, userID, postID int64) (bool, error) {
	var count int64
	err := tx.Model(&domain.LikeModel{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// LikedPostIDs reports, for each of postIDs, whether userID has liked it.
// Every requested id is present in the result.
func (r *GormLikeRepository) LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(postIDs))
	for _, id := range postIDs {
		result[id] = false
	}

	if len(postIDs) == 0 {
		return result, nil
	}

	var liked []int64
	err := r.db.WithContext(ctx).
		Model(&domain.LikeModel{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, err
	}

	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}

// GetLikesCount returns the denormalized likes_count of a post.
func (r *GormLikeRepository) GetLikesCount(ctx context.Context, postID int64) (int64, error) {
	var post domain.PostModel
	err := r.db.WithContext(ctx).
		Select("id", "likes_count").
		First(&post, "id = ?", postID).Error
	if err != nil {
		if database.IsNotFound(err) {
			return 0, ErrPostNotFound
		}
		return 0, err
	}
	return post.LikesCount, nil
}

// CountLikes counts the like rows referencing a post. The result should
// always equal GetLikesCount; the reconciler compares the two.
func (r *GormLikeRepository) CountLikes(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.LikeModel{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure interface is satisfied at compile time.
var _ LikeRepository = (*GormLikeRepository)(nil)
