package domain

import "time"

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Username    string    `gorm:"type:varchar(30);uniqueIndex;not null"`
	Email       string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	DisplayName string    `gorm:"type:varchar(100);not null"`
	Bio         *string   `gorm:"type:varchar(160)"`
	CreatedAt   time.Time `gorm:"autoCreateTime;not null"`
}

func (UserModel) TableName() string { return "users" }

// PostModel is the GORM model for the posts table.
// LikesCount is owned by the like ledger; nothing else writes it.
type PostModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	UserID     int64     `gorm:"not null;index"`
	User       UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Content    string    `gorm:"type:text;not null"`
	LikesCount int64     `gorm:"not null;default:0;check:chk_posts_likes_count,likes_count >= 0"`
	CreatedAt  time.Time `gorm:"autoCreateTime;not null;index"`
}

func (PostModel) TableName() string { return "posts" }

// LikeModel is the GORM model for the likes table.
// uidx_like_user_post enforces one like per (user, post).
type LikeModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:uidx_like_user_post,priority:1"`
	PostID    int64     `gorm:"not null;uniqueIndex:uidx_like_user_post,priority:2;index"`
	User      UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Post      PostModel `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null"`
}

func (LikeModel) TableName() string { return "likes" }

// Models lists every model in migration order.
func Models() []interface{} {
	return []interface{}{&UserModel{}, &PostModel{}, &LikeModel{}}
}

func (m *UserModel) ToDomain() *User {
	return &User{
		ID:          m.ID,
		Username:    m.Username,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Bio:         m.Bio,
		CreatedAt:   m.CreatedAt,
	}
}

func (m *PostModel) ToDomain() *Post {
	return &Post{
		ID:         m.ID,
		UserID:     m.UserID,
		Content:    m.Content,
		LikesCount: m.LikesCount,
		CreatedAt:  m.CreatedAt,
	}
}

func (m *LikeModel) ToDomain() *Like {
	return &Like{
		ID:        m.ID,
		UserID:    m.UserID,
		PostID:    m.PostID,
		CreatedAt: m.CreatedAt,
	}
}
