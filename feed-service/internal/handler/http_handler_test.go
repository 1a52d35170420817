package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/feed-service/internal/handler"
	"github.com/weiawesome/wes-feed/feed-service/internal/metrics"
	"github.com/weiawesome/wes-feed/feed-service/internal/repository"
	"github.com/weiawesome/wes-feed/feed-service/internal/service"
	"github.com/weiawesome/wes-feed/feed-service/internal/testutil"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type server struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, handler.RegisterValidators())

	db := testutil.NewDB(t)
	s, _ := testutil.NewStore(t, 0)

	ledger := service.NewLikeLedger(repository.NewGormLikeRepository(db), s)
	h := handler.NewHandler(
		service.NewUserService(repository.NewGormUserRepository(db)),
		service.NewPostService(repository.NewGormPostRepository(db), ledger),
		ledger,
	)

	r := gin.New()
	r.Use(pkglog.GinMiddleware(pkglog.New(pkglog.Config{Level: "disabled"})))
	r.Use(metrics.GinMiddleware())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	h.RegisterRoutes(r)

	return &server{t: t, db: db, engine: r}
}

func (s *server) do(method, path string, body any) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (s *server) createUser(name string) int64 {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/users", gin.H{
		"username":     name,
		"email":        name + "@example.com",
		"display_name": name,
	})
	require.Equal(s.t, http.StatusCreated, code)
	return decode[struct{ ID int64 }](s.t, env).ID
}

func (s *server) createPost(userID int64, content string) int64 {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/posts", gin.H{"user_id": userID, "content": content})
	require.Equal(s.t, http.StatusCreated, code)
	return decode[struct{ ID int64 }](s.t, env).ID
}

func TestCreateUser_Validation(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name string
		body gin.H
	}{
		{"short username", gin.H{"username": "ab", "email": "ab@example.com", "display_name": "A"}},
		{"bad characters", gin.H{"username": "bad name!", "email": "x@example.com", "display_name": "A"}},
		{"bad email", gin.H{"username": "alice", "email": "nope", "display_name": "A"}},
		{"missing display name", gin.H{"username": "alice", "email": "a@example.com"}},
		{"long bio", gin.H{"username": "alice", "email": "a@example.com", "display_name": "A", "bio": string(bytes.Repeat([]byte("x"), 161))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(http.MethodPost, "/api/v1/users", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "BAD_REQUEST", env.Error.Code)
		})
	}
}

func TestCreateUser_Conflict(t *testing.T) {
	s := newServer(t)
	s.createUser("alice")

	code, env := s.do(http.MethodPost, "/api/v1/users", gin.H{
		"username": "alice", "email": "other@example.com", "display_name": "A",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "username already exists", env.Error.Message)

	code, _ = s.do(http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCreatePost_UnknownUser(t *testing.T) {
	s := newServer(t)

	code, env := s.do(http.MethodPost, "/api/v1/posts", gin.H{"user_id": 42, "content": "hi"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, _ = s.do(http.MethodPost, "/api/v1/posts", gin.H{"user_id": 1, "content": ""})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLikeLifecycle(t *testing.T) {
	s := newServer(t)
	author := s.createUser("author")
	fan := s.createUser("fan")
	post := s.createPost(author, "hello")

	likes := fmt.Sprintf("/api/v1/posts/%d/likes", post)

	code, env := s.do(http.MethodPost, likes, gin.H{"user_id": fan})
	require.Equal(t, http.StatusCreated, code)
	like := decode[struct {
		UserID int64 `json:"user_id"`
		PostID int64 `json:"post_id"`
	}](t, env)
	assert.Equal(t, fan, like.UserID)
	assert.Equal(t, post, like.PostID)

	code, env = s.do(http.MethodPost, likes, gin.H{"user_id": fan})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "like already exists", env.Error.Message)

	code, env = s.do(http.MethodGet, likes+"/count", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), decode[struct{ Count int64 }](t, env).Count)

	code, env = s.do(http.MethodGet, fmt.Sprintf("%s/%d", likes, fan), nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[struct{ Liked bool }](t, env).Liked)

	code, env = s.do(http.MethodPost, fmt.Sprintf("/api/v1/users/%d/likes/status", fan), gin.H{"post_ids": []int64{post, 999}})
	require.Equal(t, http.StatusOK, code)
	status := decode[struct{ Liked map[string]bool }](t, env).Liked
	assert.Equal(t, map[string]bool{fmt.Sprint(post): true, "999": false}, status)

	code, env = s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts?user_id=%d", fan), nil)
	require.Equal(t, http.StatusOK, code)
	posts := decode[[]struct {
		ID         int64 `json:"id"`
		LikesCount int64 `json:"likes_count"`
		IsLiked    bool  `json:"is_liked"`
		User       struct {
			Username string `json:"username"`
		} `json:"user"`
	}](t, env)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(1), posts[0].LikesCount)
	assert.True(t, posts[0].IsLiked)
	assert.Equal(t, "author", posts[0].User.Username)

	code, env = s.do(http.MethodDelete, fmt.Sprintf("%s/%d", likes, fan), nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decode[struct{ Removed bool }](t, env).Removed)

	code, env = s.do(http.MethodDelete, fmt.Sprintf("%s/%d", likes, fan), nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[struct{ Removed bool }](t, env).Removed)

	code, env = s.do(http.MethodGet, likes+"/count", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Zero(t, decode[struct{ Count int64 }](t, env).Count)
}

func TestGetPost(t *testing.T) {
	s := newServer(t)
	author := s.createUser("author")
	fan := s.createUser("fan")
	post := s.createPost(author, "hello")

	code, _ := s.do(http.MethodPost, fmt.Sprintf("/api/v1/posts/%d/likes", post), gin.H{"user_id": fan})
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", post), nil)
	require.Equal(t, http.StatusOK, code)
	got := decode[domain.Post](t, env)
	assert.Equal(t, post, got.ID)
	assert.Equal(t, author, got.UserID)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, int64(1), got.LikesCount)

	code, env = s.do(http.MethodGet, "/api/v1/posts/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, _ = s.do(http.MethodGet, "/api/v1/posts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLike_NotFoundAndBadInput(t *testing.T) {
	s := newServer(t)
	fan := s.createUser("fan")

	code, _ := s.do(http.MethodPost, "/api/v1/posts/999/likes", gin.H{"user_id": fan})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/api/v1/posts/999/likes/count", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/api/v1/posts/abc/likes", gin.H{"user_id": fan})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/v1/posts/1/likes", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodDelete, "/api/v1/posts/1/likes/0", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/api/v1/posts?user_id=x", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, fmt.Sprintf("/api/v1/users/%d/likes/status", fan), gin.H{"post_ids": []int64{0}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStorageFailureMapsTo500(t *testing.T) {
	s := newServer(t)
	sqlDB, err := s.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	code, env := s.do(http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.Equal(t, "failed to list users", env.Error.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.createUser("alice")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "feed_http_request_duration_seconds")
}
