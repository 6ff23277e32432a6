// Package adapters はauthフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"social_backend/internal/feature/auth/domain/entity"
	"social_backend/internal/feature/auth/usecase"
	"social_backend/internal/platform/db"
)

// userGorm はUserRepositoryインターフェースのGORM実装（Credential Store）です。
// PostgreSQL・SQLiteのどちらのダイアレクトでも動作します。
type userGorm struct {
	db *gorm.DB
}

// userGormがUserRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.UserRepository = (*userGorm)(nil)

// NewUserGorm は指定されたgorm.DB接続でuserGormの新しいインスタンスを生成します。
func NewUserGorm(db *gorm.DB) *userGorm {
	return &userGorm{db: db}
}

// Models はマイグレーション対象のモデルを返します。
func Models() []any {
	return []any{&entity.User{}}
}

// storageErr は分類できないストアのエラーを usecase.ErrStorage でラップします。
func storageErr(err error) error {
	return fmt.Errorf("%w: %w", usecase.ErrStorage, err)
}

// Create はユーザーをデータベースに追加します。
// 同じメールアドレスのユーザーが既に存在する場合、usecase.ErrEmailAlreadyExistsを返します。
func (r *userGorm) Create(ctx context.Context, u *entity.User) error {
	if u == nil {
		return errors.New("user is nil")
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if db.IsDuplicateKey(err) {
			return usecase.ErrEmailAlreadyExists
		}
		return storageErr(err)
	}
	return nil
}

func (r *userGorm) first(ctx context.Context, query string, args ...any) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, usecase.ErrUserNotFound
		}
		return nil, storageErr(err)
	}
	return &u, nil
}

// FindByEmail はメールアドレスでユーザーを取得します。
// ユーザーが存在しない場合、usecase.ErrUserNotFoundを返します。
func (r *userGorm) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(ctx, "email = ?", email)
}

// FindByID はIDでユーザーを取得します。
func (r *userGorm) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	return r.first(ctx, "id = ?", id)
}

// Update はメールアドレスとパスワードハッシュを更新し、更新後のユーザーを返します。
func (r *userGorm) Update(ctx context.Context, id uint, email, passwordHash string) (*entity.User, error) {
	res := r.db.WithContext(ctx).Model(&entity.User{}).Where("id = ?", id).
		Updates(map[string]any{"email": email, "password": passwordHash})
	if res.Error != nil {
		if db.IsDuplicateKey(res.Error) {
			return nil, usecase.ErrEmailAlreadyExists
		}
		return nil, storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, usecase.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

// updateByEmail は email に一致する1行に columns を書き込みます。
func (r *userGorm) updateByEmail(ctx context.Context, email string, columns map[string]any) error {
	res := r.db.WithContext(ctx).Model(&entity.User{}).Where("email = ?", email).Updates(columns)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return usecase.ErrUserNotFound
	}
	return nil
}

// SetResetToken はダイジェストと有効期限を1回のUPDATEで設定します。
func (r *userGorm) SetResetToken(ctx context.Context, email, tokenHash string, expiry time.Time) error {
	return r.updateByEmail(ctx, email, map[string]any{
		"reset_token_hash":   tokenHash,
		"reset_token_expiry": expiry.UTC(),
	})
}

// ClearResetToken は tokenHash がまだ保存されている場合に限り、ダイジェストと有効期限を1回のUPDATEでNULLにします。
// 後続の要求で置き換えられたトークンには触れません（一致する行がなければ何もしません）。
func (r *userGorm) ClearResetToken(ctx context.Context, email, tokenHash string) error {
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("email = ? AND reset_token_hash = ?", email, tokenHash).
		Updates(map[string]any{
			"reset_token_hash":   nil,
			"reset_token_expiry": nil,
		}).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// FindByResetTokenHash は now より後に期限が切れるトークンのみを対象に検索します。
// 期限はUTCで保存・比較します（SQLiteでは時刻が文字列として比較されるため）。
func (r *userGorm) FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	return r.first(ctx, "reset_token_hash = ? AND reset_token_expiry > ?", tokenHash, now.UTC())
}

// SetPassword はパスワードハッシュの書き込みとリセットトークンのクリアを同じUPDATEで行います。
func (r *userGorm) SetPassword(ctx context.Context, email, passwordHash string) error {
	return r.updateByEmail(ctx, email, map[string]any{
		"password":           passwordHash,
		"reset_token_hash":   nil,
		"reset_token_expiry": nil,
	})
}
