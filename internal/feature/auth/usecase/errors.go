// Package usecase implements the business logic for the auth feature.
package usecase

import "errors"

var (
	// ErrUserNotFound is returned when a user cannot be found by email or ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailAlreadyExists is returned when attempting to register or move to an email that is taken.
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password alike.
	ErrInvalidCredentials = errors.New("user not found or password incorrect")

	// ErrInvalidPassword is returned when a new password does not meet the length requirement.
	ErrInvalidPassword = errors.New("password too short")

	// ErrInvalidOrExpiredToken is returned when a recovery code does not match an unexpired token.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset code")

	// ErrDeliveryFailed is returned when the recovery email could not be sent.
	ErrDeliveryFailed = errors.New("email could not be sent")

	// ErrTooManyResetRequests is returned when recovery requests for an email are throttled.
	ErrTooManyResetRequests = errors.New("too many reset requests")

	// ErrStorage wraps store failures that have no more specific meaning.
	ErrStorage = errors.New("storage error")
)
