// Package adapters はpostsフィーチャーのGORMリポジトリ実装を提供します。
package adapters

import (
	"fmt"
	"time"

	authentity "social_backend/internal/feature/auth/domain/entity"
	"social_backend/internal/feature/posts/domain/entity"
	"social_backend/internal/feature/posts/usecase"
)

// PostModel は posts テーブルの行です。
type PostModel struct {
	ID          uint      `gorm:"primaryKey"`
	Title       string    `gorm:"size:255;not null"`
	Description string    `gorm:"type:text;not null"`
	AuthorID    uint      `gorm:"not null;index"`
	ImageRef    *string   `gorm:"size:512"`
	LikeCount   int       `gorm:"not null;default:0;check:like_count >= 0"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time

	Author *authentity.User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

func (PostModel) TableName() string {
	return "posts"
}

// CommentModel は comments テーブルの行です。
type CommentModel struct {
	ID        uint   `gorm:"primaryKey"`
	Text      string `gorm:"type:text;not null"`
	AuthorID  uint   `gorm:"not null;index"`
	PostID    uint   `gorm:"not null;index"`
	CreatedAt time.Time

	Author *authentity.User `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Post   *PostModel       `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (CommentModel) TableName() string {
	return "comments"
}

// LikeModel は likes テーブルの行です。複合主キー (user_id, post_id) が一意性を保証します。
type LikeModel struct {
	UserID    uint `gorm:"primaryKey;autoIncrement:false"`
	PostID    uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time

	User *authentity.User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Post *PostModel       `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (LikeModel) TableName() string {
	return "likes"
}

// Models はマイグレーション対象のモデルを依存順に返します。
func Models() []any {
	return []any{&PostModel{}, &CommentModel{}, &LikeModel{}}
}

func toPostModel(e *entity.Post) PostModel {
	return PostModel{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		AuthorID:    e.AuthorID,
		ImageRef:    e.ImageRef,
		LikeCount:   e.LikeCount,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (m PostModel) toEntity() entity.Post {
	return entity.Post{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		AuthorID:    m.AuthorID,
		ImageRef:    m.ImageRef,
		LikeCount:   m.LikeCount,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toPosts(rows []PostModel) []entity.Post {
	out := make([]entity.Post, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toEntity())
	}
	return out
}

func (m CommentModel) toEntity() entity.Comment {
	return entity.Comment{
		ID:        m.ID,
		Text:      m.Text,
		AuthorID:  m.AuthorID,
		PostID:    m.PostID,
		CreatedAt: m.CreatedAt,
	}
}

// storageErr は分類できないストアのエラーを usecase.ErrStorage でラップします。
func storageErr(err error) error {
	return fmt.Errorf("%w: %w", usecase.ErrStorage, err)
}
