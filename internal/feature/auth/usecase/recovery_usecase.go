package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"social_backend/internal/feature/auth/domain/entity"

	"golang.org/x/crypto/bcrypt"
)

// Email はリカバリーコード通知用のメッセージです。
type Email struct {
	Recipient string
	Subject   string
	Body      string
}

// EmailSender はメール送信を抽象化します。配送方式（SMTP、ログ出力など）は実装側が決めます。
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// ResetThrottle はリセット要求の頻度制限を抽象化します。
// Allow が false を返した場合、その要求は拒否されます。
type ResetThrottle interface {
	Allow(ctx context.Context, email string) (bool, error)
}

// recoveryUsecase はワンタイムコードによるパスワード再設定（Token Service）を実装します。
type recoveryUsecase struct {
	users    UserRepository
	sender   EmailSender
	tokens   TokenIssuer
	throttle ResetThrottle // nil の場合は制限なし
	now      func() time.Time
	cost     int
}

// NewRecoveryUsecase は recoveryUsecase を生成します。throttle には nil を渡せます。
func NewRecoveryUsecase(users UserRepository, sender EmailSender, tokens TokenIssuer, throttle ResetThrottle) *recoveryUsecase {
	return &recoveryUsecase{
		users:    users,
		sender:   sender,
		tokens:   tokens,
		throttle: throttle,
		now:      time.Now,
		cost:     bcrypt.DefaultCost,
	}
}

// RequestReset はリカバリーコードを発行し、ダイジェストのみを保存してからメールで平文コードを送信します。
// 送信に失敗した場合は保存したトークンを取り消し、ErrDeliveryFailed を返します。
func (u *recoveryUsecase) RequestReset(ctx context.Context, email string) error {
	if _, err := u.users.FindByEmail(ctx, email); err != nil {
		return err
	}

	if u.throttle != nil {
		ok, err := u.throttle.Allow(ctx, email)
		if err != nil {
			// 制限ストアの障害でリカバリー自体は止めない
			slog.Warn("reset throttle unavailable", "error", err, "email", email)
		} else if !ok {
			return ErrTooManyResetRequests
		}
	}

	code, digest, err := generateOTP()
	if err != nil {
		return err
	}
	expiry := u.now().Add(OTPLifetime)
	if err := u.users.SetResetToken(ctx, email, digest, expiry); err != nil {
		return err
	}

	msg := Email{
		Recipient: email,
		Subject:   "Password Reset Code",
		Body:      fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, int(OTPLifetime.Minutes())),
	}
	if err := u.sender.Send(ctx, msg); err != nil {
		if clearErr := u.users.ClearResetToken(ctx, email, digest); clearErr != nil {
			slog.Error("failed to clear reset token after delivery failure", "error", clearErr, "email", email)
		} else {
			slog.Warn("reset token cleared after delivery failure", "error", err, "email", email)
		}
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return nil
}

// VerifyCode はコードが有効期限内のトークンと一致するか確認します。トークンは消費しません。
func (u *recoveryUsecase) VerifyCode(ctx context.Context, code string) error {
	_, err := u.lookup(ctx, code)
	return err
}

// ResetPassword はコードを検証して新しいパスワードを設定し、そのユーザーのセッショントークンを返します。
// パスワード更新と同じ UPDATE でトークンはクリアされるため、同じコードは二度使えません。
func (u *recoveryUsecase) ResetPassword(ctx context.Context, code, newPassword string) (string, error) {
	if err := validatePassword(newPassword); err != nil {
		return "", err
	}

	user, err := u.lookup(ctx, code)
	if err != nil {
		return "", err
	}

	hashed, err := hashPassword(newPassword, u.cost)
	if err != nil {
		return "", err
	}
	if err := u.users.SetPassword(ctx, user.Email, hashed); err != nil {
		return "", err
	}

	token, err := u.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return token, nil
}

func (u *recoveryUsecase) lookup(ctx context.Context, code string) (*entity.User, error) {
	if code == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	user, err := u.users.FindByResetTokenHash(ctx, hashOTP(code), u.now())
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
