package adapters

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"social_backend/internal/feature/posts/domain/entity"
	"social_backend/internal/feature/posts/usecase"
	"social_backend/internal/platform/db"
)

// postGorm は投稿の書き込み（Content Store）と読み取りクエリ（Query Engine）のGORM実装です。
type postGorm struct {
	db *gorm.DB
}

var (
	_ usecase.PostRepository      = (*postGorm)(nil)
	_ usecase.PostQueryRepository = (*postGorm)(nil)
)

// NewPostGorm は postGorm を生成します。
func NewPostGorm(db *gorm.DB) *postGorm {
	return &postGorm{db: db}
}

// Create は投稿を保存します。like_count は常に0から始まります。
func (r *postGorm) Create(ctx context.Context, post *entity.Post) error {
	m := toPostModel(post)
	m.LikeCount = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		return storageErr(err)
	}
	*post = m.toEntity()
	return nil
}

func findPost(tx *gorm.DB, id uint) (*PostModel, error) {
	var m PostModel
	if err := tx.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrPostNotFound
		}
		return nil, storageErr(err)
	}
	return &m, nil
}

// FindByID は投稿を取得します。
func (r *postGorm) FindByID(ctx context.Context, id uint) (*entity.Post, error) {
	m, err := findPost(r.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	post := m.toEntity()
	return &post, nil
}

// List はすべての投稿を新しい順に返します。
func (r *postGorm) List(ctx context.Context) ([]entity.Post, error) {
	var rows []PostModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, storageErr(err)
	}
	return toPosts(rows), nil
}

// Update はタイトル・説明・画像参照を更新します。作成者と like_count は変更しません。
func (r *postGorm) Update(ctx context.Context, post *entity.Post) (*entity.Post, error) {
	res := r.db.WithContext(ctx).Model(&PostModel{}).Where("id = ?", post.ID).
		Updates(map[string]any{
			"title":       post.Title,
			"description": post.Description,
			"image_ref":   post.ImageRef,
		})
	if res.Error != nil {
		return nil, storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, usecase.ErrPostNotFound
	}
	return r.FindByID(ctx, post.ID)
}

// Delete は投稿を、いいね・コメントとともに1トランザクションで削除します。
func (r *postGorm) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&LikeModel{}).Error; err != nil {
			return storageErr(err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&CommentModel{}).Error; err != nil {
			return storageErr(err)
		}
		res := tx.Delete(&PostModel{}, id)
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return usecase.ErrPostNotFound
		}
		return nil
	})
}

// Like は1トランザクションでいいねを追加し like_count を増やします。
// 事前の存在確認は早期リターン用で、重複の最終判定は複合主キーが行います。
// like_count の加算は行単位で原子的な UPDATE 式で行います。
func (r *postGorm) Like(ctx context.Context, userID, postID uint) (*entity.Post, error) {
	var out *PostModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findPost(tx, postID); err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&LikeModel{}).Where("user_id = ? AND post_id = ?", userID, postID).Count(&n).Error; err != nil {
			return storageErr(err)
		}
		if n > 0 {
			return usecase.ErrAlreadyLiked
		}

		like := LikeModel{UserID: userID, PostID: postID}
		if err := tx.Omit(clause.Associations).Create(&like).Error; err != nil {
			if db.IsDuplicateKey(err) {
				return usecase.ErrAlreadyLiked
			}
			// 投稿は同じトランザクションで確認済みのため、外部キー違反は user_id 側です。
			return storageErr(err)
		}

		if err := tx.Model(&PostModel{}).Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + ?", 1)).Error; err != nil {
			return storageErr(err)
		}

		m, err := findPost(tx, postID)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	post := out.toEntity()
	return &post, nil
}

// likeEscaper は LIKE パターンのワイルドカードをエスケープします。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search はタイトルまたは説明に query を含む投稿を新しい順に返します（大文字小文字を区別しない）。
// PostgreSQL では ILIKE を使います。SQLite の LOWER は ASCII のみを変換するため、
// SQLite では ASCII 以外の文字は大文字小文字を区別して一致します。
func (r *postGorm) Search(ctx context.Context, query string) ([]entity.Post, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	cond := `LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(description) LIKE LOWER(?) ESCAPE '\'`
	if r.db.Dialector.Name() == db.DriverPostgres {
		cond = `title ILIKE ? ESCAPE '\' OR description ILIKE ? ESCAPE '\'`
	}
	var rows []PostModel
	err := r.db.WithContext(ctx).
		Where(cond, pattern, pattern).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return toPosts(rows), nil
}

// Filter は条件をANDで結合して投稿を返します。
// 既定は作成日時の昇順で、SortByRecent のとき降順になります。ページ指定は最後に適用します。
func (r *postGorm) Filter(ctx context.Context, f entity.PostFilter) ([]entity.Post, error) {
	q := r.db.WithContext(ctx).Model(&PostModel{})
	if f.AuthorID != nil {
		q = q.Where("author_id = ?", *f.AuthorID)
	}
	if f.StartDate != nil {
		q = q.Where("created_at >= ?", f.StartDate.UTC())
	}
	if f.EndDate != nil {
		q = q.Where("created_at <= ?", f.EndDate.UTC())
	}
	if f.SortByRecent {
		q = q.Order("created_at DESC, id DESC")
	} else {
		q = q.Order("created_at ASC, id ASC")
	}
	if f.Paginated() {
		offset, ok := f.Offset()
		if !ok {
			return []entity.Post{}, nil
		}
		q = q.Offset(offset).Limit(f.Limit)
	}

	var rows []PostModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, storageErr(err)
	}
	return toPosts(rows), nil
}

// MostLiked は like_count の降順、同数は id の昇順で1ページ分を返します。
// page が大きすぎて位置を表せない場合は空の結果を返します。
func (r *postGorm) MostLiked(ctx context.Context, page, limit int) ([]entity.Post, error) {
	offset, ok := entity.PageOffset(page, limit)
	if !ok {
		return []entity.Post{}, nil
	}
	var rows []PostModel
	err := r.db.WithContext(ctx).
		Order("like_count DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return toPosts(rows), nil
}
