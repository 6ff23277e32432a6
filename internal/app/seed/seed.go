// Package seed は開発用の初期データ（管理者ユーザーとサンプル投稿）を投入します。
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	authentity "social_backend/internal/feature/auth/domain/entity"
	authusecase "social_backend/internal/feature/auth/usecase"
	postentity "social_backend/internal/feature/posts/domain/entity"
)

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin123"
)

// SamplePostCount は管理者作成時に投入する投稿数です。
const SamplePostCount = 5

var ordinals = [SamplePostCount]string{"first", "second", "third", "fourth", "fifth"}

// Accounts は管理者ユーザーの登録に使うユースケースです。
type Accounts interface {
	Register(ctx context.Context, email, password string) (*authentity.User, error)
}

// Posts はサンプル投稿の作成に使うリポジトリです。
type Posts interface {
	Create(ctx context.Context, post *postentity.Post) error
}

// Result は投入結果です。
type Result struct {
	AdminCreated bool
	PostsCreated int
}

// Run は管理者ユーザーを作成し、新規作成した場合のみサンプル投稿を追加します。
// 既に管理者が存在する場合は何もしないため、繰り返し実行できます。
func Run(ctx context.Context, accounts Accounts, posts Posts) (Result, error) {
	var res Result

	admin, err := accounts.Register(ctx, AdminEmail, AdminPassword)
	if errors.Is(err, authusecase.ErrEmailAlreadyExists) {
		slog.Info("admin user already exists", "email", AdminEmail)
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("create admin user: %w", err)
	}
	res.AdminCreated = true
	slog.Info("admin user created", "email", AdminEmail, "user_id", admin.ID)

	for i, ord := range ordinals {
		p := &postentity.Post{
			Title:       fmt.Sprintf("Admin Post %d", i+1),
			Description: fmt.Sprintf("This is the %s post by admin", ord),
			AuthorID:    admin.ID,
		}
		if err := posts.Create(ctx, p); err != nil {
			return res, fmt.Errorf("create sample post %d: %w", i+1, err)
		}
		res.PostsCreated++
	}
	slog.Info("sample posts created", "count", res.PostsCreated)
	return res, nil
}
