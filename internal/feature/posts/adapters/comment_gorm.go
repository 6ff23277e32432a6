package adapters

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social_backend/internal/feature/posts/domain/entity"
	"social_backend/internal/feature/posts/usecase"
	"social_backend/internal/platform/db"
)

type commentGorm struct {
	db *gorm.DB
}

var _ usecase.CommentRepository = (*commentGorm)(nil)

// NewCommentGorm は commentGorm を生成します。
func NewCommentGorm(db *gorm.DB) *commentGorm {
	return &commentGorm{db: db}
}

// Create は投稿の存在を確認してからコメントを保存します。
func (r *commentGorm) Create(ctx context.Context, comment *entity.Comment) error {
	m := CommentModel{Text: comment.Text, AuthorID: comment.AuthorID, PostID: comment.PostID}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findPost(tx, comment.PostID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&m).Error; err != nil {
			if db.IsForeignKeyViolation(err) {
				return usecase.ErrPostNotFound
			}
			return storageErr(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	*comment = m.toEntity()
	return nil
}

// FindByID はコメントを取得します。
func (r *commentGorm) FindByID(ctx context.Context, id uint) (*entity.Comment, error) {
	var m CommentModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrCommentNotFound
		}
		return nil, storageErr(err)
	}
	c := m.toEntity()
	return &c, nil
}

// ListByPost は投稿のコメントを古い順に返します。
func (r *commentGorm) ListByPost(ctx context.Context, postID uint) ([]entity.Comment, error) {
	var rows []CommentModel
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, storageErr(err)
	}
	out := make([]entity.Comment, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toEntity())
	}
	return out, nil
}

// Delete はコメントを削除します。該当行がない場合は ErrCommentNotFound を返します。
func (r *commentGorm) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&CommentModel{}, id)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return usecase.ErrCommentNotFound
	}
	return nil
}
