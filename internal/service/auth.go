package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when email or password do not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService logs users in and out and changes passwords.
type AuthService struct {
	repo   repository.UserRepository
	users  *UserService
	tokens *TokenService
	audit  *AuditService
	logger *zap.Logger
}

// NewAuthService creates an auth service.
func NewAuthService(repo repository.UserRepository, users *UserService, tokens *TokenService, audit *AuditService, logger *zap.Logger) *AuthService {
	return &AuthService{repo: repo, users: users, tokens: tokens, audit: audit, logger: logger.Named("auth")}
}

// Session is returned by a successful login.
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
	TTL   int64       `json:"expires_in"`
}

// Login checks the credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, hash, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		s.logger.Info("login rejected", zap.Int64("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(ctx, model.TokenData{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}

	s.logger.Info("login", zap.Int64("user_id", user.ID))
	return &Session{Token: token, User: user, TTL: int64(s.tokens.ttl.Seconds())}, nil
}

// Logout revokes a session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.tokens.RevokeToken(ctx, token)
}

// Authenticate resolves a session token to the current user. The role comes
// from the user directory, not the session.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	data, err := s.tokens.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Lookup(ctx, data.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		s.tokens.RevokeToken(ctx, token)
		return nil, ErrInvalidToken
	}
	return user, err
}

// ChangePassword replaces actor's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, actor model.Actor, current, next string) error {
	if len(next) < MinPasswordLength {
		return apperr.InvalidInput("new_password", "must have at least %d characters", MinPasswordLength)
	}

	user, err := s.users.Lookup(ctx, actor.ID)
	if err != nil {
		return err
	}
	_, hash, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(current)) != nil {
		return apperr.InvalidInput("current_password", "does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, actor.ID, string(newHash)); err != nil {
		return err
	}

	s.audit.recordCommitted(ctx, actor, model.ActionPasswordChanged,
		fmt.Sprintf("%s alterou a própria senha", actor.Name))
	return nil
}
