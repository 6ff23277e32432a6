// Package usecase はauthフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social_backend/internal/feature/auth/domain/entity"

	"golang.org/x/crypto/bcrypt"
)

const (
	// minPasswordLength はパスワードの最低文字数を定義します。
	minPasswordLength = 6

	// dummyHash はユーザーが存在しない場合にも bcrypt 比較を行うためのハッシュです。
	dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// UserRepository はユーザーエンティティの永続化層（Credential Store）を抽象化します。
// Goの慣例に従い、インターフェースはプロバイダー（adapters）ではなくコンシューマー（usecase）が定義します。
type UserRepository interface {
	// Create は新しいユーザーを永続化します。
	// メールアドレスが重複する場合は ErrEmailAlreadyExists を返します。
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail はメールアドレスに完全一致するユーザーを取得します。
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID は指定されたIDのユーザーを取得します。
	FindByID(ctx context.Context, id uint) (*entity.User, error)

	// Update はメールアドレスとパスワードハッシュを更新します。
	Update(ctx context.Context, id uint, email, passwordHash string) (*entity.User, error)

	// SetResetToken はリセットトークンのダイジェストと有効期限を同時に設定します。
	SetResetToken(ctx context.Context, email, tokenHash string, expiry time.Time) error

	// ClearResetToken は保存中のダイジェストが tokenHash と一致する場合に限り、ダイジェストと有効期限を同時にクリアします。
	ClearResetToken(ctx context.Context, email, tokenHash string) error

	// FindByResetTokenHash は now 時点で有効期限内のダイジェストに一致するユーザーを取得します。
	FindByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*entity.User, error)

	// SetPassword はパスワードハッシュを上書きし、同じ更新でリセットトークンをクリアします。
	SetPassword(ctx context.Context, email, passwordHash string) error
}

// TokenIssuer は認証済みユーザーに対するベアラートークンの発行を定義します。
type TokenIssuer interface {
	// GenerateToken は指定されたユーザーの署名済みトークンを生成します。
	GenerateToken(userID uint, email string) (string, error)
}

// authUsecase は登録・ログイン・プロフィール操作を実装します。
type authUsecase struct {
	users  UserRepository
	tokens TokenIssuer
	cost   int
}

// NewAuthUsecase はauthUsecaseの新しいインスタンスを生成します。
func NewAuthUsecase(users UserRepository, tokens TokenIssuer) *authUsecase {
	return &authUsecase{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
	}
}

// validatePassword はパスワードが長さ要件を満たしているかチェックします。
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrInvalidPassword, minPasswordLength)
	}
	return nil
}

// hashPassword はレコードごとにランダムなソルトを含む bcrypt ハッシュを生成します。
func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Register はハッシュ化されたパスワードで新規ユーザーを登録します。
// 事前のメール重複チェックは早期リターンのためのもので、最終的な判定はユニーク制約が行います。
func (u *authUsecase) Register(ctx context.Context, email, password string) (*entity.User, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if _, err := u.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hashed, err := hashPassword(password, u.cost)
	if err != nil {
		return nil, err
	}
	user := &entity.User{Email: email, Password: hashed}
	if err := u.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login はユーザーを認証し、成功時にトークンを返します。
// タイミング攻撃を防止するため、ユーザーが存在しない場合でもbcrypt比較を実行します。
func (u *authUsecase) Login(ctx context.Context, email, password string) (string, error) {
	user, err := u.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	passwordHash := dummyHash
	if err == nil {
		passwordHash = user.Password
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))

	// ユーザー未検出とパスワード不一致は区別しない
	if err != nil || compareErr != nil {
		return "", ErrInvalidCredentials
	}

	token, err := u.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

// Profile は認証済みユーザー自身の情報を返します。
func (u *authUsecase) Profile(ctx context.Context, userID uint) (*entity.User, error) {
	return u.users.FindByID(ctx, userID)
}

// UpdateProfile はメールアドレスとパスワードを更新します。
// password が空の場合は現在のハッシュを維持します。
func (u *authUsecase) UpdateProfile(ctx context.Context, userID uint, email, password string) (*entity.User, error) {
	current, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	hashed := current.Password
	if password != "" {
		if err := validatePassword(password); err != nil {
			return nil, err
		}
		if hashed, err = hashPassword(password, u.cost); err != nil {
			return nil, err
		}
	}

	if email == "" {
		email = current.Email
	}
	return u.users.Update(ctx, userID, email, hashed)
}
