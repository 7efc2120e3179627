package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"cruzeta-api/internal/apperr"
	"cruzeta-api/internal/cache"
	"cruzeta-api/internal/model"
	"cruzeta-api/internal/policy"
	"cruzeta-api/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 6

const userKeyPrefix = "user:"

// UserService is the user directory: role lookup and administration.
type UserService struct {
	repo   repository.UserRepository
	cache  cache.Cache
	ttl    time.Duration
	audit  *AuditService
	logger *zap.Logger
}

// NewUserService creates a user service. Lookups are cached for ttl.
func NewUserService(repo repository.UserRepository, c cache.Cache, ttl time.Duration, audit *AuditService, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, cache: c, ttl: ttl, audit: audit, logger: logger.Named("users")}
}

func userKey(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

// Lookup returns a user by ID, going through the cache.
func (s *UserService) Lookup(ctx context.Context, id int64) (*model.User, error) {
	data, err := s.cache.GetOrSet(ctx, userKey(id), s.ttl, func() ([]byte, error) {
		u, err := s.repo.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(u)
	})
	if err != nil {
		return nil, err
	}

	var u model.User
	if err := json.Unmarshal(data, &u); err != nil {
		s.cache.Delete(ctx, userKey(id))
		return nil, fmt.Errorf("failed to decode cached user: %w", err)
	}
	u.Role = model.ParseRole(string(u.Role))
	return &u, nil
}

// NewUser is the input for creating a user.
type NewUser struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Password   string `json:"password"`
}

func (n *NewUser) validate() error {
	n.Name = strings.TrimSpace(n.Name)
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	if n.Name == "" {
		return apperr.InvalidInput("name", "is required")
	}
	if _, err := mail.ParseAddress(n.Email); err != nil {
		return apperr.InvalidInput("email", "is not a valid address")
	}
	if n.Role != "" && !model.KnownRole(n.Role) {
		return apperr.InvalidInput("role", "unknown role %q", n.Role)
	}
	if len(n.Password) < MinPasswordLength {
		return apperr.InvalidInput("password", "must have at least %d characters", MinPasswordLength)
	}
	return nil
}

func (s *UserService) create(ctx context.Context, in NewUser) (*model.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Name:       in.Name,
		Email:      in.Email,
		Role:       model.ParseRole(in.Role),
		Department: strings.TrimSpace(in.Department),
	}
	if err := s.repo.CreateUser(ctx, user, string(hash)); err != nil {
		return nil, err
	}
	return user, nil
}

// Create registers a new user.
func (s *UserService) Create(ctx context.Context, actor model.Actor, in NewUser) (*model.User, error) {
	if err := policy.Require(actor, policy.Admin); err != nil {
		return nil, err
	}
	user, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	s.audit.recordCommitted(ctx, actor, model.ActionRoleChanged,
		fmt.Sprintf("%s cadastrou %s como %s", actor.Name, user.Name, user.Role))
	return user, nil
}

// List returns all users.
func (s *UserService) List(ctx context.Context, actor model.Actor) ([]model.User, error) {
	if err := policy.Require(actor, policy.Admin); err != nil {
		return nil, err
	}
	return s.repo.ListUsers(ctx)
}

// SetRole changes a user's role. The change is visible on the user's next
// request.
func (s *UserService) SetRole(ctx context.Context, actor model.Actor, id int64, role string) (*model.User, error) {
	if err := policy.Require(actor, policy.Admin); err != nil {
		return nil, err
	}
	if !model.KnownRole(role) {
		return nil, apperr.InvalidInput("role", "unknown role %q", role)
	}
	if id == actor.ID && model.Role(role) != model.RoleAdmMaster {
		return nil, apperr.InvalidInput("role", "administrators cannot demote themselves")
	}

	user, err := s.repo.UpdateUserRole(ctx, id, model.Role(role))
	if err != nil {
		return nil, err
	}
	if err := s.cache.Delete(ctx, userKey(id)); err != nil {
		s.logger.Warn("failed to invalidate cached user", zap.Int64("user_id", id), zap.Error(err))
	}

	s.audit.recordCommitted(ctx, actor, model.ActionRoleChanged,
		fmt.Sprintf("%s alterou o perfil de %s para %s", actor.Name, user.Name, user.Role))
	return user, nil
}

// Bootstrap creates the first ADM_MASTER when the directory is empty. It
// reports whether a user was created.
func (s *UserService) Bootstrap(ctx context.Context, name, email, password string) (bool, error) {
	n, err := s.repo.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	user, err := s.create(ctx, NewUser{Name: name, Email: email, Role: string(model.RoleAdmMaster), Password: password})
	if errors.Is(err, apperr.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	s.logger.Info("bootstrap administrator created", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	return true, nil
}
