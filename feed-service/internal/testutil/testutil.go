// Package testutil builds throwaway SQLite databases and miniredis-backed
// stores for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/feed-service/internal/store"
	"github.com/weiawesome/wes-feed/pkg/database"
)

// NewDB opens a migrated SQLite database in a temp dir. A single connection
// serializes transactions the way a row lock would.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "feed.db")
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// NewStore starts a miniredis server and returns a store bound to it.
func NewStore(t testing.TB, ttl time.Duration) (*store.RedisLikeStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewRedisLikeStoreWithClient(client, ttl)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

// SeedUser inserts a user named name and returns its id.
func SeedUser(t testing.TB, db *gorm.DB, name string) int64 {
	t.Helper()

	user := domain.UserModel{
		Username:    name,
		Email:       fmt.Sprintf("%s@example.com", name),
		DisplayName: name,
	}
	require.NoError(t, db.Create(&user).Error)
	return user.ID
}

// SeedPost inserts a post by userID and returns its id.
func SeedPost(t testing.TB, db *gorm.DB, userID int64, content string) int64 {
	t.Helper()

	post := domain.PostModel{UserID: userID, Content: content}
	require.NoError(t, db.Omit("User").Create(&post).Error)
	return post.ID
}

// LikesCount reads posts.likes_count directly.
func LikesCount(t testing.TB, db *gorm.DB, postID int64) int64 {
	t.Helper()

	var post domain.PostModel
	require.NoError(t, db.Select("likes_count").First(&post, "id = ?", postID).Error)
	return post.LikesCount
}

// LikeRows counts the like rows of a post directly.
func LikeRows(t testing.TB, db *gorm.DB, postID int64) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&domain.LikeModel{}).Where("post_id = ?", postID).Count(&n).Error)
	return n
}
