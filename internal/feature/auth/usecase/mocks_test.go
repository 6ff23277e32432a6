package usecase

import (
	"context"
	"time"

	"social_backend/internal/feature/auth/domain/entity"
)

// mockUserRepository is a function-field mock of UserRepository.
// Unset functions fall back to a benign default.
type mockUserRepository struct {
	CreateFunc               func(user *entity.User) error
	FindByEmailFunc          func(email string) (*entity.User, error)
	FindByIDFunc             func(id uint) (*entity.User, error)
	UpdateFunc               func(id uint, email, passwordHash string) (*entity.User, error)
	SetResetTokenFunc        func(email, tokenHash string, expiry time.Time) error
	ClearResetTokenFunc      func(email, tokenHash string) error
	FindByResetTokenHashFunc func(tokenHash string, now time.Time) (*entity.User, error)
	SetPasswordFunc          func(email, passwordHash string) error
}

var _ UserRepository = (*mockUserRepository)(nil)

func (m *mockUserRepository) Create(_ context.Context, user *entity.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(user)
	}
	return nil
}

func (m *mockUserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(email)
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepository) FindByID(_ context.Context, id uint) (*entity.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(id)
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepository) Update(_ context.Context, id uint, email, passwordHash string) (*entity.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(id, email, passwordHash)
	}
	return &entity.User{ID: id, Email: email, Password: passwordHash}, nil
}

func (m *mockUserRepository) SetResetToken(_ context.Context, email, tokenHash string, expiry time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(email, tokenHash, expiry)
	}
	return nil
}

func (m *mockUserRepository) ClearResetToken(_ context.Context, email, tokenHash string) error {
	if m.ClearResetTokenFunc != nil {
		return m.ClearResetTokenFunc(email, tokenHash)
	}
	return nil
}

func (m *mockUserRepository) FindByResetTokenHash(_ context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	if m.FindByResetTokenHashFunc != nil {
		return m.FindByResetTokenHashFunc(tokenHash, now)
	}
	return nil, ErrUserNotFound
}

func (m *mockUserRepository) SetPassword(_ context.Context, email, passwordHash string) error {
	if m.SetPasswordFunc != nil {
		return m.SetPasswordFunc(email, passwordHash)
	}
	return nil
}

// mockTokenIssuer is a mock implementation of TokenIssuer.
type mockTokenIssuer struct {
	GenerateTokenFunc func(userID uint, email string) (string, error)
}

func (m *mockTokenIssuer) GenerateToken(userID uint, email string) (string, error) {
	if m.GenerateTokenFunc != nil {
		return m.GenerateTokenFunc(userID, email)
	}
	return "mock-jwt-token", nil
}

// mockEmailSender records sent messages.
type mockEmailSender struct {
	SendFunc func(msg Email) error
	sent     []Email
}

func (m *mockEmailSender) Send(_ context.Context, msg Email) error {
	m.sent = append(m.sent, msg)
	if m.SendFunc != nil {
		return m.SendFunc(msg)
	}
	return nil
}

type mockThrottle struct {
	AllowFunc func(email string) (bool, error)
}

func (m *mockThrottle) Allow(_ context.Context, email string) (bool, error) {
	return m.AllowFunc(email)
}

// memoryUserRepository is a small stateful UserRepository used by flow tests
// that need reset-token state to persist across calls.
type memoryUserRepository struct {
	users  map[string]*entity.User
	nextID uint
}

var _ UserRepository = (*memoryUserRepository)(nil)

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: map[string]*entity.User{}, nextID: 1}
}

func (r *memoryUserRepository) Create(_ context.Context, user *entity.User) error {
	if _, ok := r.users[user.Email]; ok {
		return ErrEmailAlreadyExists
	}
	user.ID = r.nextID
	r.nextID++
	cp := *user
	r.users[user.Email] = &cp
	return nil
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepository) FindByID(_ context.Context, id uint) (*entity.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryUserRepository) Update(ctx context.Context, id uint, email, passwordHash string) (*entity.User, error) {
	u, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	delete(r.users, u.Email)
	u.Email, u.Password = email, passwordHash
	r.users[email] = u
	cp := *u
	return &cp, nil
}

func (r *memoryUserRepository) SetResetToken(_ context.Context, email, tokenHash string, expiry time.Time) error {
	u, ok := r.users[email]
	if !ok {
		return ErrUserNotFound
	}
	u.ResetTokenHash, u.ResetTokenExpiry = &tokenHash, &expiry
	return nil
}

func (r *memoryUserRepository) ClearResetToken(_ context.Context, email, tokenHash string) error {
	u, ok := r.users[email]
	if !ok || u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash {
		return nil
	}
	u.ResetTokenHash, u.ResetTokenExpiry = nil, nil
	return nil
}

func (r *memoryUserRepository) FindByResetTokenHash(_ context.Context, tokenHash string, now time.Time) (*entity.User, error) {
	for _, u := range r.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == tokenHash && u.ResetTokenExpiry.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memoryUserRepository) SetPassword(_ context.Context, email, passwordHash string) error {
	u, ok := r.users[email]
	if !ok {
		return ErrUserNotFound
	}
	u.Password = passwordHash
	u.ResetTokenHash, u.ResetTokenExpiry = nil, nil
	return nil
}
