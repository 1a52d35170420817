package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-feed/feed-service/internal/audit"
	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/feed-service/internal/repository"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
)

type userService struct {
	repo repository.UserRepository
}

// NewUserService creates a new UserService instance.
func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	l := pkglog.Ctx(ctx)

	user := &domain.User{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, ErrUsernameTaken
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailTaken
		}
		l.Error().Err(err).Str("username", req.Username).Msg("failed to create user")
		return nil, storageError(err)
	}

	audit.Log(ctx, audit.ActionCreateUser, user.ID, "user created")
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list users")
		return nil, storageError(err)
	}
	return users, nil
}

var _ UserService = (*userService)(nil)
