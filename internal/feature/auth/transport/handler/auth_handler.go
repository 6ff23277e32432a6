// Package handler はauthフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"social_backend/internal/api"
	"social_backend/internal/feature/auth/domain/entity"
	"social_backend/internal/feature/auth/usecase"
	jwtmw "social_backend/internal/platform/jwt"
)

// tokenCookie はログイン時にトークンを格納するクッキー名です。
const tokenCookie = "access_token"

// AuthUsecase は登録・ログイン・プロフィール操作のユースケースを定義します。
// Goの慣例に従い、インターフェースはプロバイダー（usecase）ではなくコンシューマー（handler）が定義します。
type AuthUsecase interface {
	Register(ctx context.Context, email, password string) (*entity.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Profile(ctx context.Context, userID uint) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uint, email, password string) (*entity.User, error)
}

// RecoveryUsecase はワンタイムコードによるパスワード再設定を定義します。
type RecoveryUsecase interface {
	RequestReset(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, code string) error
	ResetPassword(ctx context.Context, code, newPassword string) (string, error)
}

// AuthHandler は認証・パスワード再設定・プロフィールのHTTPリクエストを処理します。
type AuthHandler struct {
	auth     AuthUsecase
	recovery RecoveryUsecase
	tokenTTL time.Duration
}

// NewAuthHandler はAuthHandlerの新しいインスタンスを生成します。
// tokenTTL はトークンクッキーの有効期間で、発行するトークンの有効期限と揃えます。0 以下なら jwtmw.DefaultExpiration です。
func NewAuthHandler(auth AuthUsecase, recovery RecoveryUsecase, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = jwtmw.DefaultExpiration
	}
	return &AuthHandler{auth: auth, recovery: recovery, tokenTTL: tokenTTL}
}

// statusFor はユースケースのエラーをHTTPステータスとクライアント向けメッセージに変換します。
// 内部エラーの詳細はクライアントに公開しません。
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, usecase.ErrEmailAlreadyExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return http.StatusUnauthorized, usecase.ErrInvalidCredentials.Error()
	case errors.Is(err, usecase.ErrInvalidPassword):
		return http.StatusBadRequest, "password must be at least 6 characters long"
	case errors.Is(err, usecase.ErrInvalidOrExpiredToken):
		return http.StatusBadRequest, "invalid or expired code"
	case errors.Is(err, usecase.ErrDeliveryFailed):
		return http.StatusBadGateway, "email could not be sent"
	case errors.Is(err, usecase.ErrTooManyResetRequests):
		return http.StatusTooManyRequests, "too many requests"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func toUserResponse(u *entity.User) api.UserResponse {
	return api.UserResponse{ID: u.ID, Email: openapi_types.Email(u.Email)}
}

// Register はユーザー登録APIエンドポイントを処理します。
// - バリデーションエラー時は400
// - メール重複時は409
// - 成功時はパスワードハッシュを含まないユーザー情報と201を返却
func (h *AuthHandler) Register(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("register validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	user, err := h.auth.Register(c.Request.Context(), string(req.Email), req.Password)
	if err != nil {
		slog.Warn("register failed", "error", err, "email", req.Email, "remote_addr", c.ClientIP())
		status, msg := statusFor(err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	slog.Info("user register successful", "email", req.Email, "remote_addr", c.ClientIP())
	c.JSON(http.StatusCreated, api.RegisterResponse{User: toUserResponse(user)})
}

// Login はユーザーログインAPIエンドポイントを処理します。
// 成功時はトークンをレスポンスボディとHttpOnlyクッキーの両方で返します。
func (h *AuthHandler) Login(c *gin.Context) {
	var req api.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("login validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	token, err := h.auth.Login(c.Request.Context(), string(req.Email), req.Password)
	if err != nil {
		// ユーザー列挙攻撃を防止するため、認証失敗の理由は区別しない
		slog.Warn("login failed", "error", err, "email", req.Email, "remote_addr", c.ClientIP())
		status, msg := statusFor(err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	slog.Info("user login successful", "email", req.Email, "remote_addr", c.ClientIP())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, int(h.tokenTTL.Seconds()), "/", "", gin.Mode() == gin.ReleaseMode, true)
	c.JSON(http.StatusOK, api.TokenResponse{Message: "Logged in successfully!", Token: token})
}

// ForgotPassword はリカバリーコードをメールで送信します。
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req api.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("forgot password validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.recovery.RequestReset(c.Request.Context(), string(req.Email)); err != nil {
		slog.Warn("reset request failed", "error", err, "email", req.Email, "remote_addr", c.ClientIP())
		status, msg := statusFor(err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	slog.Info("reset code issued", "email", req.Email, "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Reset code sent to email"})
}

// VerifyCode はリカバリーコードが有効か確認します。コードは消費されません。
func (h *AuthHandler) VerifyCode(c *gin.Context) {
	var req api.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.recovery.VerifyCode(c.Request.Context(), req.Code); err != nil {
		slog.Warn("code verification failed", "error", err, "remote_addr", c.ClientIP())
		status, msg := statusFor(err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Code verified"})
}

// ResetPassword は新しいパスワードを設定し、新しいトークンを返却します。
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req api.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	token, err := h.recovery.ResetPassword(c.Request.Context(), req.Code, req.Password)
	if err != nil {
		slog.Warn("password reset failed", "error", err, "remote_addr", c.ClientIP())
		status, msg := statusFor(err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	slog.Info("password reset successful", "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, api.TokenResponse{Message: "Password reset successful", Token: token})
}

// GetProfile は認証済みユーザー自身の情報を返します。
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := jwtmw.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}
	user, err := h.auth.Profile(c.Request.Context(), userID)
	if err != nil {
		status, msg := statusFor(err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// UpdateProfile は認証済みユーザーのメールアドレスとパスワードを更新します。
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := jwtmw.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthorized"})
		return
	}
	var req api.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	user, err := h.auth.UpdateProfile(c.Request.Context(), userID, string(req.Email), req.Password)
	if err != nil {
		slog.Warn("profile update failed", "error", err, "email", req.Email, "remote_addr", c.ClientIP())
		status, msg := statusFor(err)
		c.JSON(status, api.ErrorResponse{Error: msg})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}
