package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/wes-feed/feed-service/internal/consumer"
	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrPostNotFound  = errors.New("post not found")
	ErrAlreadyLiked  = errors.New("like already exists")
	ErrUsernameTaken = errors.New("username already exists")
	ErrEmailTaken    = errors.New("email already exists")
	ErrStorage       = errors.New("storage failure")
)

// storageError tags an unclassified lower-layer error as ErrStorage while
// keeping the cause inspectable.
func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// UserService manages the user directory.
type UserService interface {
	CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// PostService manages posts and the annotated post listing.
type PostService interface {
	CreatePost(ctx context.Context, req *domain.CreatePostRequest) (*domain.Post, error)
	GetPost(ctx context.Context, postID int64) (*domain.Post, error)
	// ListPosts returns every post newest first. A positive viewerID marks
	// the posts that viewer liked.
	ListPosts(ctx context.Context, viewerID int64) ([]domain.PostWithUser, error)
}

// LikeLedger owns the (user, post) like relation and each post's
// likes_count.
type LikeLedger interface {
	AddLike(ctx context.Context, userID, postID int64) (*domain.Like, error)
	RemoveLike(ctx context.Context, userID, postID int64) (bool, error)
	HasLiked(ctx context.Context, userID, postID int64) (bool, error)
	LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
	GetLikesCount(ctx context.Context, postID int64) (int64, error)
	HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error
}
