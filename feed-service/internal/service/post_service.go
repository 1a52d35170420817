package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-feed/feed-service/internal/audit"
	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/feed-service/internal/repository"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
)

type postService struct {
	posts  repository.PostRepository
	ledger LikeLedger
}

// NewPostService creates a new PostService. The ledger supplies the viewer's
// like status for listings.
func NewPostService(posts repository.PostRepository, ledger LikeLedger) PostService {
	return &postService{posts: posts, ledger: ledger}
}

func (s *postService) CreatePost(ctx context.Context, req *domain.CreatePostRequest) (*domain.Post, error) {
	l := pkglog.Ctx(ctx)

	post := &domain.Post{
		UserID:  req.UserID,
		Content: req.Content,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		l.Error().Err(err).Int64(pkglog.FieldUserID, req.UserID).Msg("failed to create post")
		return nil, storageError(err)
	}

	audit.LogPost(ctx, audit.ActionCreatePost, post.UserID, post.ID, "post created")
	return post, nil
}

func (s *postService) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Int64(pkglog.FieldPostID, postID).Msg("failed to get post")
		return nil, storageError(err)
	}
	return post, nil
}

func (s *postService) ListPosts(ctx context.Context, viewerID int64) ([]domain.PostWithUser, error) {
	l := pkglog.Ctx(ctx)

	posts, err := s.posts.ListWithAuthors(ctx)
	if err != nil {
		l.Error().Err(err).Msg("failed to list posts")
		return nil, storageError(err)
	}
	if viewerID <= 0 || len(posts) == 0 {
		return posts, nil
	}

	ids := make([]int64, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	liked, err := s.ledger.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].IsLiked = liked[posts[i].ID]
	}
	return posts, nil
}

var _ PostService = (*postService)(nil)
