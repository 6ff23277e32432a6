package usecase

import (
	"context"

	"social_backend/internal/feature/posts/domain/entity"
)

const (
	// DefaultPage はランキングのデフォルトページです（1始まり）。
	DefaultPage = 1
	// DefaultLimit はランキングのデフォルト件数です。
	DefaultLimit = 10
	// MaxLimit は1ページあたりの最大件数です。
	MaxLimit = 100
)

// PostQueryRepository は投稿の読み取り専用クエリ（Query Engine）を抽象化します。
type PostQueryRepository interface {
	// Search はタイトルまたは説明に query を含む投稿を、大文字小文字を区別せず新しい順に返します。
	Search(ctx context.Context, query string) ([]entity.Post, error)
	// Filter は条件をANDで結合して投稿を返します。
	Filter(ctx context.Context, f entity.PostFilter) ([]entity.Post, error)
	// MostLiked は like_count の降順（同数は id の昇順）で1ページ分を返します。
	MostLiked(ctx context.Context, page, limit int) ([]entity.Post, error)
}

// queryUsecase は検索・絞り込み・ランキングを実装します。
type queryUsecase struct {
	posts PostQueryRepository
}

// NewQueryUsecase はqueryUsecaseの新しいインスタンスを生成します。
func NewQueryUsecase(posts PostQueryRepository) *queryUsecase {
	return &queryUsecase{posts: posts}
}

// Search は部分一致検索を行います。クエリはそのまま部分文字列として扱い、空文字列は空の結果を返します。
func (u *queryUsecase) Search(ctx context.Context, query string) ([]entity.Post, error) {
	if query == "" {
		return []entity.Post{}, nil
	}
	return u.posts.Search(ctx, query)
}

// Filter は条件に一致する投稿を返します。ページ指定は page と limit が両方正のときだけ有効です。
func (u *queryUsecase) Filter(ctx context.Context, f entity.PostFilter) ([]entity.Post, error) {
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return u.posts.Filter(ctx, f)
}

// MostLiked はいいね数のランキングを返します。
func (u *queryUsecase) MostLiked(ctx context.Context, page, limit int) ([]entity.Post, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return u.posts.MostLiked(ctx, page, limit)
}
