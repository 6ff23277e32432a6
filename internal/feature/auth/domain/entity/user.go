// Package entity defines the domain entities for the auth feature.
package entity

import "time"

// User represents a registered account.
type User struct {
	// ID is the unique identifier for the user.
	ID uint `gorm:"primaryKey" json:"id"`

	// Email is the login identifier. It is unique and matched exactly as stored.
	Email string `gorm:"uniqueIndex;size:255;not null" json:"email"`

	// Password is the bcrypt hash. It never holds plaintext and is never serialized.
	Password string `gorm:"size:255;not null" json:"-"`

	// ResetTokenHash is the SHA-256 digest of the active one-time recovery code.
	// ResetTokenHash and ResetTokenExpiry are either both nil or both set.
	ResetTokenHash *string `gorm:"size:64;index" json:"-"`

	// ResetTokenExpiry is the absolute expiry of the active recovery code.
	ResetTokenExpiry *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
