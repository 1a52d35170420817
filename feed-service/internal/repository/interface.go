package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrUsernameExists   = errors.New("username already exists")
	ErrEmailExists      = errors.New("email already exists")
	ErrLikeExists       = errors.New("like already exists")
	ErrCounterUnderflow = errors.New("likes_count would drop below zero")
)

// UserRepository is the user directory.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	List(ctx context.Context) ([]domain.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

// PostRepository is the post directory. It never mutates likes_count.
type PostRepository interface {
	Create(ctx context.Context, post *domain.Post) error
	GetByID(ctx context.Context, id int64) (*domain.Post, error)
	ListWithAuthors(ctx context.Context) ([]domain.PostWithUser, error)
}

// LikeRepository owns the likes relation and is the only writer of
// posts.likes_count.
type LikeRepository interface {
	AddLike(ctx context.Context, userID, postID int64) (*domain.Like, error)
	RemoveLike(ctx context.Context, userID, postID int64) (bool, error)
	HasLiked(ctx context.Context, userID, postID int64) (bool, error)
	LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	GetLikesCount(ctx context.Context, postID int64) (int64, error)
	CountLikes(ctx context.Context, postID int64) (int64, error)
}
