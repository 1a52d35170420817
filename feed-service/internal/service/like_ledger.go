package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-feed/feed-service/internal/audit"
	"github.com/weiawesome/wes-feed/feed-service/internal/consumer"
	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/feed-service/internal/metrics"
	"github.com/weiawesome/wes-feed/feed-service/internal/repository"
	"github.com/weiawesome/wes-feed/feed-service/internal/store"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
)

const (
	opAddLike    = "add_like"
	opRemoveLike = "remove_like"
)

// likeLedger implements LikeLedger on top of the like repository, which runs
// each mutation as a single transaction, and a disposable Redis count cache.
type likeLedger struct {
	repo  repository.LikeRepository
	store store.LikeCountStore
	sf    singleflight.Group
}

// NewLikeLedger creates a new LikeLedger instance.
func NewLikeLedger(repo repository.LikeRepository, store store.LikeCountStore) LikeLedger {
	return &likeLedger{
		repo:  repo,
		store: store,
	}
}

// AddLike records that userID likes postID and bumps the post's likes_count.
// Nothing is mutated when it fails.
func (s *likeLedger) AddLike(ctx context.Context, userID, postID int64) (*domain.Like, error) {
	ctx = pkglog.WithInt64(pkglog.WithInt64(ctx, pkglog.FieldUserID, userID), pkglog.FieldPostID, postID)
	l := pkglog.Ctx(ctx)

	like, err := s.repo.AddLike(ctx, userID, postID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			metrics.ObserveLedger(opAddLike, metrics.ResultNotFound)
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrPostNotFound):
			metrics.ObserveLedger(opAddLike, metrics.ResultNotFound)
			return nil, ErrPostNotFound
		case errors.Is(err, repository.ErrLikeExists):
			metrics.ObserveLedger(opAddLike, metrics.ResultAlreadyLiked)
			return nil, ErrAlreadyLiked
		}
		metrics.ObserveLedger(opAddLike, metrics.ResultError)
		l.Error().Err(err).Msg("failed to add like")
		return nil, storageError(err)
	}

	metrics.ObserveLedger(opAddLike, metrics.ResultOK)
	s.invalidate(ctx, postID)
	audit.LogAction(ctx, audit.ActionLike, "post liked")
	return like, nil
}

// RemoveLike deletes the like for (userID, postID) and drops the post's
// likes_count by one. A missing like, or a missing post, yields false.
func (s *likeLedger) RemoveLike(ctx context.Context, userID, postID int64) (bool, error) {
	ctx = pkglog.WithInt64(pkglog.WithInt64(ctx, pkglog.FieldUserID, userID), pkglog.FieldPostID, postID)
	l := pkglog.Ctx(ctx)

	removed, err := s.repo.RemoveLike(ctx, userID, postID)
	if err != nil {
		metrics.ObserveLedger(opRemoveLike, metrics.ResultError)
		if errors.Is(err, repository.ErrCounterUnderflow) {
			l.Error().Err(err).Msg("likes_count out of step with likes, removal rolled back")
		} else {
			l.Error().Err(err).Msg("failed to remove like")
		}
		return false, storageError(err)
	}
	if !removed {
		metrics.ObserveLedger(opRemoveLike, metrics.ResultNoop)
		return false, nil
	}

	metrics.ObserveLedger(opRemoveLike, metrics.ResultOK)
	s.invalidate(ctx, postID)
	audit.LogAction(ctx, audit.ActionUnlike, "post unliked")
	return true, nil
}

// HasLiked reports whether userID currently likes postID.
func (s *likeLedger) HasLiked(ctx context.Context, userID, postID int64) (bool, error) {
	liked, err := s.repo.HasLiked(ctx, userID, postID)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Int64(pkglog.FieldUserID, userID).
			Int64(pkglog.FieldPostID, postID).
			Msg("failed to check like")
		return false, storageError(err)
	}
	return liked, nil
}

// LikedPostIDs reports, for each requested post, whether userID likes it.
func (s *likeLedger) LikedPostIDs(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	if len(postIDs) == 0 {
		return map[int64]bool{}, nil
	}

	liked, err := s.repo.LikedPostIDs(ctx, userID, postIDs)
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).
			Int64(pkglog.FieldUserID, userID).
			Int("post_count", len(postIDs)).
			Msg("failed to load liked posts")
		return nil, storageError(err)
	}
	return liked, nil
}

// GetLikesCount returns a post's likes_count.
// It checks Redis first; on miss it queries the DB and populates Redis. Every
// read counts towards the post's hot key score.
func (s *likeLedger) GetLikesCount(ctx context.Context, postID int64) (int64, error) {
	l := pkglog.Ctx(ctx)

	if err := s.store.RecordAccess(ctx, postID); err != nil {
		l.Warn().Err(err).Int64(pkglog.FieldPostID, postID).Msg("failed to record hot key access")
	}

	count, found, err := s.store.GetLikesCount(ctx, postID)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		l.Warn().Err(err).Int64(pkglog.FieldPostID, postID).Msg("redis get likes count failed, falling back to db")
	case found:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return count, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	// The version is read before the database so that an invalidation
	// landing mid-load rejects the fill. It is also part of the flight key:
	// a caller arriving after a commit never joins a load that started
	// before it.
	version, verErr := s.store.CountVersion(ctx, postID)
	if verErr != nil {
		l.Warn().Err(verErr).Int64(pkglog.FieldPostID, postID).Msg("failed to read likes count version, skipping cache fill")
	}
	key := fmt.Sprintf("%d:%d", postID, version)
	if verErr != nil {
		key += ":nocache"
	}

	// The load is shared, so one caller's cancellation must not fail the rest.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		count, err := s.repo.GetLikesCount(loadCtx, postID)
		if err != nil {
			return nil, err
		}
		if verErr != nil {
			return count, nil
		}
		stored, err := s.store.SetLikesCountIfVersion(loadCtx, postID, count, version)
		if err != nil {
			l.Warn().Err(err).Int64(pkglog.FieldPostID, postID).Msg("failed to set likes count in redis")
		} else if !stored {
			l.Debug().Int64(pkglog.FieldPostID, postID).Msg("likes count changed during load, cache fill skipped")
		}
		return count, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return 0, ErrPostNotFound
		}
		l.Error().Err(err).Int64(pkglog.FieldPostID, postID).Msg("failed to get likes count from db")
		return 0, storageError(err)
	}

	return v.(int64), nil
}

// HandleCDCEvent drops the cached count of every post a likes-table change
// touches. Counts are reloaded from the database on the next read, so the
// event's own values are never trusted.
func (s *likeLedger) HandleCDCEvent(ctx context.Context, event *consumer.DebeziumMessage) error {
	l := pkglog.Ctx(ctx)
	op := event.Payload.Op

	switch op {
	case "r":
		// Snapshot read, nothing changed.
		return nil

	case "c", "u", "d":
		metrics.CDCEvents.WithLabelValues(op).Inc()
		postIDs := event.PostIDs()
		if len(postIDs) == 0 {
			l.Warn().Str(pkglog.FieldOp, op).Msg("CDC event carries no post id")
			return nil
		}
		if err := s.store.Invalidate(ctx, postIDs...); err != nil {
			l.Error().Err(err).Str(pkglog.FieldOp, op).Ints64("post_ids", postIDs).Msg("failed to invalidate likes count")
			return err
		}

	default:
		l.Warn().Str(pkglog.FieldOp, op).Msg("unknown CDC operation, skipping")
	}

	return nil
}

// invalidate drops the cached count after a committed mutation. The database
// already holds the truth, so failures are only logged.
func (s *likeLedger) invalidate(ctx context.Context, postID int64) {
	if err := s.store.Invalidate(ctx, postID); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to invalidate likes count cache")
	}
}

// Ensure interface is satisfied at compile time.
var _ LikeLedger = (*likeLedger)(nil)
