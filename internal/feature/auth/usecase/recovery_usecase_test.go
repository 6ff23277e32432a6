package usecase

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"social_backend/internal/feature/auth/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var codePattern = regexp.MustCompile(`\b[0-9a-f]{6}\b`)

type recoveryFixture struct {
	repo   *memoryUserRepository
	sender *mockEmailSender
	uc     *recoveryUsecase
	clock  time.Time
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()
	f := &recoveryFixture{
		repo:   newMemoryUserRepository(),
		sender: &mockEmailSender{},
		clock:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.uc = NewRecoveryUsecase(f.repo, f.sender, &mockTokenIssuer{}, nil)
	f.uc.cost = bcrypt.MinCost
	f.uc.now = func() time.Time { return f.clock }

	hashed, err := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.repo.Create(context.Background(), &entity.User{Email: "user@example.com", Password: string(hashed)}))
	return f
}

// sentCode extracts the plaintext code from the last delivered message.
func (f *recoveryFixture) sentCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, f.sender.sent)
	code := codePattern.FindString(f.sender.sent[len(f.sender.sent)-1].Body)
	require.NotEmpty(t, code)
	return code
}

func TestGenerateOTP(t *testing.T) {
	t.Parallel()

	code, digest, err := generateOTP()

	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.Regexp(t, `^[0-9a-f]{6}$`, code)
	assert.Len(t, digest, 64)
	assert.Equal(t, hashOTP(code), digest)
	assert.NotEqual(t, code, digest)
}

func TestRecoveryUsecase_RequestReset(t *testing.T) {
	t.Parallel()

	t.Run("persists only the digest and mails the code", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)

		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))

		code := f.sentCode(t)
		stored := f.repo.users["user@example.com"]
		require.NotNil(t, stored.ResetTokenHash)
		require.NotNil(t, stored.ResetTokenExpiry)
		assert.Equal(t, hashOTP(code), *stored.ResetTokenHash)
		assert.NotEqual(t, code, *stored.ResetTokenHash)
		assert.Equal(t, f.clock.Add(OTPLifetime), *stored.ResetTokenExpiry)
		assert.Equal(t, "user@example.com", f.sender.sent[0].Recipient)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)

		err := f.uc.RequestReset(context.Background(), "nobody@example.com")

		assert.ErrorIs(t, err, ErrUserNotFound)
		assert.Empty(t, f.sender.sent)
	})

	t.Run("delivery failure clears the token", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		f.sender.SendFunc = func(Email) error { return errors.New("smtp down") }

		err := f.uc.RequestReset(context.Background(), "user@example.com")

		assert.ErrorIs(t, err, ErrDeliveryFailed)
		stored := f.repo.users["user@example.com"]
		assert.Nil(t, stored.ResetTokenHash)
		assert.Nil(t, stored.ResetTokenExpiry)

		// The code that was never delivered must not verify.
		code := f.sentCode(t)
		assert.ErrorIs(t, f.uc.VerifyCode(context.Background(), code), ErrInvalidOrExpiredToken)
	})

	t.Run("failed delivery keeps a code delivered by an overlapping request", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		calls := 0
		f.sender.SendFunc = func(Email) error {
			calls++
			if calls > 1 {
				return nil
			}
			// A second request for the same address completes while the first delivery is still pending.
			require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
			return errors.New("smtp timeout")
		}

		err := f.uc.RequestReset(context.Background(), "user@example.com")

		assert.ErrorIs(t, err, ErrDeliveryFailed)
		require.Len(t, f.sender.sent, 2)
		first := codePattern.FindString(f.sender.sent[0].Body)
		second := codePattern.FindString(f.sender.sent[1].Body)
		assert.NoError(t, f.uc.VerifyCode(context.Background(), second))
		if first != second {
			assert.ErrorIs(t, f.uc.VerifyCode(context.Background(), first), ErrInvalidOrExpiredToken)
		}
	})

	t.Run("throttled", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		f.uc.throttle = &mockThrottle{AllowFunc: func(string) (bool, error) { return false, nil }}

		err := f.uc.RequestReset(context.Background(), "user@example.com")

		assert.ErrorIs(t, err, ErrTooManyResetRequests)
		assert.Empty(t, f.sender.sent)
	})

	t.Run("throttle failure does not block recovery", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		f.uc.throttle = &mockThrottle{AllowFunc: func(string) (bool, error) { return false, errors.New("redis down") }}

		assert.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		assert.Len(t, f.sender.sent, 1)
	})

	t.Run("a new request replaces the previous code", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)

		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		first := f.sentCode(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		second := f.sentCode(t)

		if first != second {
			assert.ErrorIs(t, f.uc.VerifyCode(context.Background(), first), ErrInvalidOrExpiredToken)
		}
		assert.NoError(t, f.uc.VerifyCode(context.Background(), second))
	})
}

func TestRecoveryUsecase_VerifyCode(t *testing.T) {
	t.Parallel()

	t.Run("valid within the lifetime and not consumed", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		code := f.sentCode(t)

		f.clock = f.clock.Add(9 * time.Minute)
		assert.NoError(t, f.uc.VerifyCode(context.Background(), code))
		assert.NoError(t, f.uc.VerifyCode(context.Background(), code))
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		code := f.sentCode(t)

		f.clock = f.clock.Add(OTPLifetime)
		assert.ErrorIs(t, f.uc.VerifyCode(context.Background(), code), ErrInvalidOrExpiredToken)
	})

	t.Run("wrong and empty codes", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))

		assert.ErrorIs(t, f.uc.VerifyCode(context.Background(), "zzzzzz"), ErrInvalidOrExpiredToken)
		assert.ErrorIs(t, f.uc.VerifyCode(context.Background(), ""), ErrInvalidOrExpiredToken)
	})
}

func TestRecoveryUsecase_ResetPassword(t *testing.T) {
	t.Parallel()

	t.Run("sets the password, clears the token and issues a session", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		code := f.sentCode(t)

		token, err := f.uc.ResetPassword(context.Background(), code, "newpassword")

		require.NoError(t, err)
		assert.Equal(t, "mock-jwt-token", token)
		stored := f.repo.users["user@example.com"]
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("newpassword")))
		assert.Nil(t, stored.ResetTokenHash)
		assert.Nil(t, stored.ResetTokenExpiry)
	})

	t.Run("the same code cannot be used twice", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		code := f.sentCode(t)

		_, err := f.uc.ResetPassword(context.Background(), code, "newpassword")
		require.NoError(t, err)
		_, err = f.uc.ResetPassword(context.Background(), code, "anotherpassword")

		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})

	t.Run("short password leaves the token in place", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		code := f.sentCode(t)

		_, err := f.uc.ResetPassword(context.Background(), code, "abc")

		assert.ErrorIs(t, err, ErrInvalidPassword)
		assert.NoError(t, f.uc.VerifyCode(context.Background(), code))
	})

	t.Run("expired code", func(t *testing.T) {
		t.Parallel()
		f := newRecoveryFixture(t)
		require.NoError(t, f.uc.RequestReset(context.Background(), "user@example.com"))
		code := f.sentCode(t)

		f.clock = f.clock.Add(11 * time.Minute)
		_, err := f.uc.ResetPassword(context.Background(), code, "newpassword")

		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	})
}
