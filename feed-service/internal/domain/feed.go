package domain

import "time"

// User is a registered feed member.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Bio         *string   `json:"bio"`
	CreatedAt   time.Time `json:"created_at"`
}

// Post is a short text post with its denormalized like counter.
type Post struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Content    string    `json:"content"`
	LikesCount int64     `json:"likes_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Like records that a user liked a post.
type Like struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	PostID    int64     `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostAuthor is the author summary embedded in listed posts.
type PostAuthor struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// PostWithUser is a listed post joined with its author and annotated
// with whether the viewing user liked it.
type PostWithUser struct {
	Post
	User    PostAuthor `json:"user"`
	IsLiked bool       `json:"is_liked"`
}

// CreateUserRequest is the body of POST /users.
type CreateUserRequest struct {
	Username    string  `json:"username" binding:"required,min=3,max=30,username"`
	Email       string  `json:"email" binding:"required,email"`
	DisplayName string  `json:"display_name" binding:"required,min=1,max=100"`
	Bio         *string `json:"bio" binding:"omitempty,max=160"`
}

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	UserID  int64  `json:"user_id" binding:"required,gt=0"`
	Content string `json:"content" binding:"required,min=1,max=280"`
}

// LikeRequest is the body of POST /posts/:post_id/likes.
type LikeRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// LikedStatusRequest is the body of POST /users/:user_id/likes/status.
type LikedStatusRequest struct {
	PostIDs []int64 `json:"post_ids" binding:"required,max=500,dive,gt=0"`
}
