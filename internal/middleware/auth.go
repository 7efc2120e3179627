package middleware

import (
	"context"
	"errors"
	"net/http"

	"cruzeta-api/internal/model"
	"cruzeta-api/internal/service"
	"cruzeta-api/pkg/apierror"

	"go.uber.org/zap"
)

// TokenHeader carries the session token.
const TokenHeader = "X-Token"

// UserKey is the key for storing the authenticated user in request context.
const UserKey contextKey = "user"

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Authenticator Authenticator
	Logger        *zap.Logger
}

// NewAuthMiddleware rejects requests without a valid X-Token and stores the
// resolved user in the request context.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(TokenHeader)
			if token == "" {
				writeError(w, apierror.Unauthorized("Authentication required. Use the X-Token header."))
				return
			}

			user, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if errors.Is(err, service.ErrInvalidToken) {
				writeError(w, apierror.Unauthorized("Invalid or expired token"))
				return
			}
			if err != nil {
				logger.Error("session lookup failed", zap.Error(err), zap.String("request_id", GetRequestID(r.Context())))
				writeError(w, apierror.ServiceUnavailable("session store unavailable"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// writeError writes an API error response.
func writeError(w http.ResponseWriter, err *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	w.Write(err.ToJSON())
}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// UserFromContext retrieves the authenticated user from request context.
func UserFromContext(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserKey).(*model.User); ok {
		return user
	}
	return nil
}

// ActorFromContext returns the acting identity of the authenticated user.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	user := UserFromContext(ctx)
	if user == nil {
		return model.Actor{}, false
	}
	return user.Actor(), true
}

// SessionToken returns the raw session token of r.
func SessionToken(r *http.Request) string {
	return r.Header.Get(TokenHeader)
}
