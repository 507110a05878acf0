package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/quollsec/authgate/internal/auth/domain"
	"github.com/quollsec/authgate/internal/auth/store"
	"github.com/quollsec/authgate/pkg/cryptox"
	"github.com/quollsec/authgate/pkg/idx"
	"github.com/quollsec/authgate/pkg/slogx"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)

var (
	ErrUsernameTaken   = errors.New("username_taken")
	ErrInvalidUsername = errors.New("invalid_username")
	ErrWeakPassword    = errors.New("weak_password")
)

// UserService handles account registration and lookups.
type UserService struct {
	Store store.Store
}

func NewUserService(s store.Store) *UserService {
	return &UserService{Store: s}
}

// Register creates a new account with an argon2id password hash.
func (s *UserService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	slogx.FromContext(ctx).Info("user registered", "user_id", user.ID)
	return user, nil
}

// GetUserByID looks up an account.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, id)
}
