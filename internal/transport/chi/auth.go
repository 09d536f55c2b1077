package chi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/cellarium-cloud/cas-api/internal/domain"
	"github.com/cellarium-cloud/cas-api/internal/repository/registry"
)

// userResolver is the consumer interface for token resolution (ISP).
type userResolver interface {
	GetUserByToken(ctx context.Context, token string) (domain.User, error)
}

type contextKey struct{ name string }

var userContextKey = &contextKey{"user"}

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware returns a middleware that resolves Bearer tokens to
// user records and places the user on the request context. Unknown tokens
// and inactive users are rejected.
func BearerAuthMiddleware(users userResolver, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			token := auth[len(bearerPrefix):]
			user, err := users.GetUserByToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, registry.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api token")
					return
				}
				logger.Error("token lookup failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			if !user.Active {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "user is not active")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
		})
	}
}

func contextWithUser(ctx context.Context, user domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(domain.User)
	return user, ok
}
