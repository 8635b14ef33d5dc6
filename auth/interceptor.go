package auth

import (
	"club-chat/domain/account"
	"club-chat/errors"
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userKey contextKey = "user"

func WithUser(ctx context.Context, user account.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (account.User, bool) {
	user, ok := ctx.Value(userKey).(account.User)
	return user, ok
}

// BearerToken reads "Authorization: Bearer <token>", falling back to the token
// query parameter browsers have to use for websocket upgrades.
func BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token and injects the user into the request context.
func Middleware(tokens TokenManager, onError func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				onError(w, errors.ErrInvalidToken)
				return
			}
			claims, err := tokens.Validate(token)
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
		})
	}
}
