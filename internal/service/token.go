package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cruzeta-api/internal/cache"
	"cruzeta-api/internal/model"
)

const (
	// TokenPrefix is the prefix for all session tokens
	TokenPrefix = "crz_"

	// DefaultTokenTTL is the default session lifetime (one work shift)
	DefaultTokenTTL = 8 * time.Hour

	tokenKeyPrefix = "session:"
)

// ErrInvalidToken is returned for malformed, unknown and expired tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenService handles session token generation and validation. Sessions
// live in the shared cache so any API instance can validate them.
type TokenService struct {
	store cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(store cache.Cache, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{store: store, ttl: ttl, now: time.Now}
}

// GenerateToken creates a new session token and stores it.
func (s *TokenService) GenerateToken(ctx context.Context, data model.TokenData) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	data.CreatedAt = s.now().UTC()
	data.ExpiresAt = data.CreatedAt.Add(s.ttl)

	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize token data: %w", err)
	}

	if err := s.store.Set(ctx, tokenKeyPrefix+token, jsonData, s.ttl); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// ValidateToken checks if a token is valid and returns its data.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.TokenData, error) {
	if !strings.HasPrefix(token, TokenPrefix) {
		return nil, ErrInvalidToken
	}

	key := tokenKeyPrefix + token
	jsonData, err := s.store.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}

	if s.now().After(data.ExpiresAt) {
		s.store.Delete(ctx, key)
		return nil, ErrInvalidToken
	}

	return &data, nil
}

// RevokeToken deletes a token.
func (s *TokenService) RevokeToken(ctx context.Context, token string) error {
	return s.store.Delete(ctx, tokenKeyPrefix+token)
}

// RefreshToken extends the lifetime of an existing token.
func (s *TokenService) RefreshToken(ctx context.Context, token string) (*model.TokenData, error) {
	data, err := s.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	data.ExpiresAt = s.now().UTC().Add(s.ttl)
	newJSON, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, tokenKeyPrefix+token, newJSON, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return data, nil
}
