// Package authpw provides email/password registration, sign-in and profile changes.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"advisory/api/internal/rbac"
	"advisory/api/internal/store"
)

// BcryptCost matches the hashes already in production.
const BcryptCost = 12

const MinPasswordLength = 6

var (
	ErrEmailRegistered         = errors.New("email already registered")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrInvalidRole             = errors.New("invalid role")
	ErrPasswordTooShort        = errors.New("password too short")
	ErrProfileIncomplete       = errors.New("name and email are required")
	ErrCurrentPasswordRequired = errors.New("current password required")
	ErrPasswordConfirmMismatch = errors.New("new password and confirmation differ")
	ErrCurrentPasswordMismatch = errors.New("current password does not match")
)

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByID(ctx context.Context, id string) (store.User, error)
	CreateUser(ctx context.Context, in store.NewUser) (store.User, error)
	UpdateUserProfile(ctx context.Context, userID, name, email string, passwordHash *string) (store.User, error)
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(users UserStore) *Service {
	return &Service{store: users, cost: BcryptCost}
}

// NewServiceWithCost is for tests that cannot afford production hashing cost.
func NewServiceWithCost(users UserStore, cost int) *Service {
	return &Service{store: users, cost: cost}
}

type RegisterRequest struct {
	Email    string
	Password string
	Name     string
	Role     rbac.Role
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (store.User, error) {
	if !req.Role.Valid() {
		return store.User{}, ErrInvalidRole
	}
	if len(req.Password) < MinPasswordLength {
		return store.User{}, ErrPasswordTooShort
	}
	email := NormalizeEmail(req.Email)

	_, err := s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return store.User{}, ErrEmailRegistered
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return store.User{}, err
	}

	user, err := s.store.CreateUser(ctx, store.NewUser{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Role:         req.Role,
	})
	if errors.Is(err, store.ErrEmailTaken) {
		return store.User{}, ErrEmailRegistered
	}
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignIn does not say whether the email or the password was wrong.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}

type ProfileRequest struct {
	Name            string
	Email           string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// UpdateProfile changes name and email. A password change is attempted only
// when NewPassword is set and then needs the current password.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req ProfileRequest) (store.User, error) {
	name := strings.TrimSpace(req.Name)
	email := NormalizeEmail(req.Email)
	if name == "" || email == "" {
		return store.User{}, ErrProfileIncomplete
	}

	var newHash *string
	if req.NewPassword != "" {
		switch {
		case req.CurrentPassword == "":
			return store.User{}, ErrCurrentPasswordRequired
		case req.NewPassword != req.ConfirmPassword:
			return store.User{}, ErrPasswordConfirmMismatch
		case len(req.NewPassword) < MinPasswordLength:
			return store.User{}, ErrPasswordTooShort
		}

		current, err := s.store.GetUserByID(ctx, userID)
		if err != nil {
			return store.User{}, err
		}
		if err := bcrypt.CompareHashAndPassword([]byte(current.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			return store.User{}, ErrCurrentPasswordMismatch
		}
		hash, err := s.hash(req.NewPassword)
		if err != nil {
			return store.User{}, err
		}
		newHash = &hash
	}

	user, err := s.store.UpdateUserProfile(ctx, userID, name, email, newHash)
	if errors.Is(err, store.ErrEmailTaken) {
		return store.User{}, ErrEmailRegistered
	}
	if err != nil {
		return store.User{}, err
	}
	return user, nil
}

// EnsureUser creates the account unless the email is already registered.
// It reports whether a new account was created.
func (s *Service) EnsureUser(ctx context.Context, req RegisterRequest) (store.User, bool, error) {
	user, err := s.Register(ctx, req)
	if errors.Is(err, ErrEmailRegistered) {
		existing, lookupErr := s.store.GetUserByEmail(ctx, NormalizeEmail(req.Email))
		return existing, false, lookupErr
	}
	if err != nil {
		return store.User{}, false, err
	}
	return user, true, nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
