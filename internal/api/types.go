// Package api defines the HTTP request and response shapes shared by handlers.
package api

import (
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse carries a human-readable status message.
type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Message string `json:"message,omitempty"`
	Token   string `json:"token"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    openapi_types.Email `json:"email" binding:"required"`
	Password string              `json:"password" binding:"required,min=6"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    openapi_types.Email `json:"email" binding:"required"`
	Password string              `json:"password" binding:"required"`
}

// ForgotPasswordRequest is the body of POST /api/auth/forgotpassword.
type ForgotPasswordRequest struct {
	Email openapi_types.Email `json:"email" binding:"required"`
}

// VerifyCodeRequest is the body of POST /api/auth/verifycode.
type VerifyCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// ResetPasswordRequest is the body of PUT /api/auth/resetpassword.
type ResetPasswordRequest struct {
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// UpdateProfileRequest is the body of PUT /api/users/profile.
// An empty password keeps the current one.
type UpdateProfileRequest struct {
	Email    openapi_types.Email `json:"email" binding:"required"`
	Password string              `json:"password" binding:"omitempty,min=6"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID    uint                `json:"id"`
	Email openapi_types.Email `json:"email"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	User UserResponse `json:"user"`
}

// PostForm is the multipart form of POST/PUT /api/posts. The optional image
// file is read separately from the "image" field.
type PostForm struct {
	Title       string `form:"title" binding:"required"`
	Description string `form:"description" binding:"required"`
}

// CommentRequest is the body of POST /api/posts/:id/comments.
type CommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// FilterParams are the query parameters of GET /api/posts/filter.
type FilterParams struct {
	Author       *int                `json:"author,omitempty"`
	StartDate    *openapi_types.Date `json:"startDate,omitempty"`
	EndDate      *openapi_types.Date `json:"endDate,omitempty"`
	SortByRecent *bool               `json:"sortByRecent,omitempty"`
	Page         *int                `json:"page,omitempty"`
	Limit        *int                `json:"limit,omitempty"`
}

// PageParams are the query parameters of GET /api/posts/mostliked.
type PageParams struct {
	Page  *int `json:"page,omitempty"`
	Limit *int `json:"limit,omitempty"`
}
