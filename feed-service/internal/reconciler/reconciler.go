package reconciler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiawesome/wes-feed/feed-service/internal/audit"
	"github.com/weiawesome/wes-feed/feed-service/internal/config"
	"github.com/weiawesome/wes-feed/feed-service/internal/metrics"
	"github.com/weiawesome/wes-feed/feed-service/internal/repository"
	"github.com/weiawesome/wes-feed/feed-service/internal/store"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
)

// Reconciler periodically refreshes the cached counts of the most read posts
// from the database and checks each likes_count against its like rows.
// Drift is reported, never repaired.
type Reconciler struct {
	store  store.LikeCountStore
	repo   repository.LikeRepository
	cfg    config.ReconcilerConfig
	quit   chan struct{}
	doneCh chan struct{}
}

// Result summarizes one reconciliation cycle.
type Result struct {
	Checked int
	Drifted []int64
}

// New creates a new Reconciler.
func New(store store.LikeCountStore, repo repository.LikeRepository, cfg config.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		store:  store,
		repo:   repo,
		cfg:    cfg,
		quit:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the reconciler in a background goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the reconciler to stop and returns immediately.
// Call Done() to wait for it to exit.
func (r *Reconciler) Stop() {
	close(r.quit)
}

// Done returns a channel that is closed when the reconciler has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.doneCh
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)

	interval := r.cfg.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Reconcile(ctx); err != nil {
				l := pkglog.L()
				l.Error().Err(err).Msg("reconciler: cycle failed")
			}
		}
	}
}

// Reconcile runs one cycle over the current top-N hot posts and resets the
// hot key scores afterwards. Per-post failures are logged and skipped.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	l := pkglog.L()

	topN := int64(r.cfg.TopN)
	if topN <= 0 {
		topN = 100
	}
	limit := r.cfg.Concurrency
	if limit <= 0 {
		limit = 8
	}

	postIDs, err := r.store.GetTopHotKeys(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("get top hot keys: %w", err)
	}
	if len(postIDs) == 0 {
		l.Debug().Msg("reconciler: no hot keys to reconcile")
		return &Result{}, nil
	}

	drifted := make([]bool, len(postIDs))
	var checked atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, postID := range postIDs {
		g.Go(func() error {
			ok, drift := r.reconcilePost(gctx, postID)
			if ok {
				checked.Add(1)
			}
			drifted[i] = drift
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Checked: int(checked.Load())}
	for i, d := range drifted {
		if d {
			res.Drifted = append(res.Drifted, postIDs[i])
		}
	}
	metrics.CounterDriftPosts.Set(float64(len(res.Drifted)))
	metrics.ReconcileRuns.Inc()

	if err := r.store.ResetHotKeyScores(ctx); err != nil {
		l.Error().Err(err).Msg("reconciler: failed to reset hot key scores")
	}

	l.Info().
		Int("hot_keys", len(postIDs)).
		Int("checked", res.Checked).
		Int("drifted", len(res.Drifted)).
		Msg("reconciler: hot-key reconciliation complete")
	return res, nil
}

// reconcilePost refreshes one post's cached count and compares it with the
// like rows. It reports whether the post was checked and whether it drifted.
func (r *Reconciler) reconcilePost(ctx context.Context, postID int64) (bool, bool) {
	l := pkglog.L().With().Int64(pkglog.FieldPostID, postID).Logger()

	version, verErr := r.store.CountVersion(ctx, postID)
	if verErr != nil {
		l.Error().Err(verErr).Msg("reconciler: failed to read likes count version")
	}

	count, err := r.repo.GetLikesCount(ctx, postID)
	if err != nil {
		// A deleted post simply falls out of the hot set.
		l.Warn().Err(err).Msg("reconciler: failed to get likes count from db")
		return false, false
	}
	if verErr == nil {
		// A like committed since the version read already dropped the entry.
		if _, err := r.store.SetLikesCountIfVersion(ctx, postID, count, version); err != nil {
			l.Error().Err(err).Msg("reconciler: failed to set likes count in redis")
		}
	}

	rows, err := r.repo.CountLikes(ctx, postID)
	if err != nil {
		l.Error().Err(err).Msg("reconciler: failed to count likes")
		return false, false
	}
	if rows == count {
		return true, false
	}

	detail := fmt.Sprintf("likes_count=%d likes=%d", count, rows)
	audit.LogWithDetail(ctx, audit.ActionDrift, postID, detail, "likes_count drift detected")
	return true, true
}
