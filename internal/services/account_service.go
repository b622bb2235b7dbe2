package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/whatsorder/go-orders-backend/internal/auth"
	"github.com/whatsorder/go-orders-backend/internal/domain"
	"github.com/whatsorder/go-orders-backend/internal/repo"
)

// AccountRepo defines the user persistence contract required by
// AccountService.
type AccountRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, name, email, passwordHash string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
}

// AccountService registers operator accounts and issues access tokens.
type AccountService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the user repository.
	Repo AccountRepo
	// JWTSecret signs issued tokens.
	JWTSecret []byte
	// TokenTTL is the issued token lifetime; zero means auth.DefaultTokenTTL.
	TokenTTL time.Duration
}

const minPasswordLen = 8

// Register creates an operator account and returns it with a fresh token.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (*domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || len(password) < minPasswordLen {
		return nil, "", ErrMissingPayload
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", ErrMissingPayload
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", err
	}
	u, err := s.Repo.CreateUser(ctx, s.DB, name, email, hash)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, "", ErrEmailTaken
	}
	if err != nil {
		return nil, "", err
	}

	token, err := auth.IssueToken(s.JWTSecret, u.ID, u.Email, s.TokenTTL)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials and returns the account with a fresh token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, "", ErrBadCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrBadCredentials
	}

	token, err := auth.IssueToken(s.JWTSecret, u.ID, u.Email, s.TokenTTL)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}
