package handler

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/weiawesome/wes-feed/feed-service/internal/domain"
	"github.com/weiawesome/wes-feed/feed-service/internal/service"
	pkglog "github.com/weiawesome/wes-feed/pkg/log"
	"github.com/weiawesome/wes-feed/pkg/response"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// RegisterValidators adds the custom binding rules used by request DTOs to
// gin's validator. It is safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}

// Handler handles HTTP requests for the feed service.
type Handler struct {
	users  service.UserService
	posts  service.PostService
	ledger service.LikeLedger
}

// NewHandler creates a new HTTP handler.
func NewHandler(users service.UserService, posts service.PostService, ledger service.LikeLedger) *Handler {
	return &Handler{
		users:  users,
		posts:  posts,
		ledger: ledger,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		users := api.Group("/users")
		{
			users.POST("", h.CreateUser)
			users.GET("", h.ListUsers)
			users.POST("/:user_id/likes/status", h.LikedStatus)
		}

		posts := api.Group("/posts")
		{
			posts.POST("", h.CreatePost)
			posts.GET("", h.ListPosts)
			posts.GET("/:post_id", h.GetPost)
			posts.POST("/:post_id/likes", h.AddLike)
			posts.GET("/:post_id/likes/count", h.GetLikesCount)
			posts.GET("/:post_id/likes/:user_id", h.HasLiked)
			posts.DELETE("/:post_id/likes/:user_id", h.RemoveLike)
		}
	}
}

// CreateUser handles POST /api/v1/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err, "failed to create user")
		return
	}

	response.Created(c, user)
}

// ListUsers handles GET /api/v1/users.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "failed to list users")
		return
	}

	response.Success(c, users)
}

// CreatePost handles POST /api/v1/posts.
func (h *Handler) CreatePost(c *gin.Context) {
	var req domain.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	post, err := h.posts.CreatePost(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err, "failed to create post")
		return
	}

	response.Created(c, post)
}

// GetPost handles GET /api/v1/posts/:post_id.
func (h *Handler) GetPost(c *gin.Context) {
	postID, ok := parseID(c.Param("post_id"))
	if !ok {
		response.BadRequest(c, "invalid post_id")
		return
	}

	post, err := h.posts.GetPost(c.Request.Context(), postID)
	if err != nil {
		h.writeError(c, err, "failed to get post")
		return
	}

	response.Success(c, post)
}

// ListPosts handles GET /api/v1/posts. The optional user_id query parameter
// names the viewer whose likes are marked.
func (h *Handler) ListPosts(c *gin.Context) {
	var viewerID int64
	if raw := c.Query("user_id"); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			response.BadRequest(c, "invalid user_id")
			return
		}
		viewerID = id
	}

	posts, err := h.posts.ListPosts(c.Request.Context(), viewerID)
	if err != nil {
		h.writeError(c, err, "failed to list posts")
		return
	}

	response.Success(c, posts)
}

// AddLike handles POST /api/v1/posts/:post_id/likes.
func (h *Handler) AddLike(c *gin.Context) {
	postID, ok := parseID(c.Param("post_id"))
	if !ok {
		response.BadRequest(c, "invalid post_id")
		return
	}

	var req domain.LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	like, err := h.ledger.AddLike(c.Request.Context(), req.UserID, postID)
	if err != nil {
		h.writeError(c, err, "failed to like post")
		return
	}

	response.Created(c, like)
}

// RemoveLike handles DELETE /api/v1/posts/:post_id/likes/:user_id.
func (h *Handler) RemoveLike(c *gin.Context) {
	postID, userID, ok := pairParams(c)
	if !ok {
		return
	}

	removed, err := h.ledger.RemoveLike(c.Request.Context(), userID, postID)
	if err != nil {
		h.writeError(c, err, "failed to unlike post")
		return
	}

	response.Success(c, gin.H{"removed": removed})
}

// HasLiked handles GET /api/v1/posts/:post_id/likes/:user_id.
func (h *Handler) HasLiked(c *gin.Context) {
	postID, userID, ok := pairParams(c)
	if !ok {
		return
	}

	liked, err := h.ledger.HasLiked(c.Request.Context(), userID, postID)
	if err != nil {
		h.writeError(c, err, "failed to check like")
		return
	}

	response.Success(c, gin.H{"liked": liked})
}

// GetLikesCount handles GET /api/v1/posts/:post_id/likes/count.
func (h *Handler) GetLikesCount(c *gin.Context) {
	postID, ok := parseID(c.Param("post_id"))
	if !ok {
		response.BadRequest(c, "invalid post_id")
		return
	}

	count, err := h.ledger.GetLikesCount(c.Request.Context(), postID)
	if err != nil {
		h.writeError(c, err, "failed to get likes count")
		return
	}

	response.Success(c, gin.H{"post_id": postID, "count": count})
}

// LikedStatus handles POST /api/v1/users/:user_id/likes/status.
func (h *Handler) LikedStatus(c *gin.Context) {
	userID, ok := parseID(c.Param("user_id"))
	if !ok {
		response.BadRequest(c, "invalid user_id")
		return
	}

	var req domain.LikedStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	liked, err := h.ledger.LikedPostIDs(c.Request.Context(), userID, req.PostIDs)
	if err != nil {
		h.writeError(c, err, "failed to load like status")
		return
	}

	response.Success(c, gin.H{"liked": liked})
}

// writeError maps service errors onto HTTP responses. Anything outside the
// taxonomy is reported as an internal error with a generic message.
func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPostNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrAlreadyLiked),
		errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrEmailTaken):
		response.Conflict(c, err.Error())
	default:
		l := pkglog.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		_ = c.Error(err)
		response.InternalError(c, msg)
	}
}

func pairParams(c *gin.Context) (postID, userID int64, ok bool) {
	postID, ok = parseID(c.Param("post_id"))
	if !ok {
		response.BadRequest(c, "invalid post_id")
		return 0, 0, false
	}
	userID, ok = parseID(c.Param("user_id"))
	if !ok {
		response.BadRequest(c, "invalid user_id")
		return 0, 0, false
	}
	return postID, userID, true
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
