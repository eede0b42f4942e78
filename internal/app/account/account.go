/*
Package account is the credential store: it registers accounts with bcrypt password
hashes and verifies credentials for the session registry.
*/
package account

import (
	"context"
	"errors"
	"regexp"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"roomlink/internal/app/model"
	"roomlink/internal/app/store"
	"roomlink/internal/pkg/errs"
	"roomlink/internal/pkg/logx"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// Service registers and verifies accounts.
type Service struct {
	users store.UserRepository
	cost  int
	now   func() time.Time
}

// NewService creates a credential store over users. cost is the bcrypt cost; zero
// selects bcrypt.DefaultCost.
func NewService(users store.UserRepository, cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{users: users, cost: cost, now: time.Now}
}

// Register creates an account. Usernames are 3-20 lowercase letters, digits or
// underscores; passwords 6-72 characters.
func (s *Service) Register(ctx context.Context, username, password string) (model.User, error) {
	if !usernameRegex.MatchString(username) {
		return model.User{}, errs.NewError(errs.ErrInvalidUsername)
	}

	passwordLen := utf8.RuneCountInString(password)
	if passwordLen < minPasswordLength || passwordLen > maxPasswordLength || len(password) > maxPasswordLength {
		return model.User{}, errs.NewError(errs.ErrInvalidPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.User{}, errs.NewError(errs.ErrUnknown, err)
	}

	user := model.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.User{}, errs.NewError(errs.ErrUserAlreadyExists)
		}
		return model.User{}, errs.NewError(errs.ErrStorageFailed, err)
	}

	logx.Info("Account registered", "username", username)
	return user, nil
}

// Verify checks username/password. Unknown users and wrong passwords yield the same error.
func (s *Service) Verify(ctx context.Context, username, password string) error {
	user, err := s.users.GetUser(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return errs.NewError(errs.ErrStorageFailed, err)
		}
		logx.Warn("login: unknown user", "username", username)
		return errs.NewError(errs.ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logx.Warn("login: password mismatch", "username", username)
		return errs.NewError(errs.ErrInvalidCredentials)
	}

	return nil
}
