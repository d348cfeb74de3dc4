package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Context key for the authenticated owner
type contextKey string

const (
	OwnerIDKey     contextKey = "ownerID"
	TokenClaimsKey contextKey = "jwtClaims"
)

// Auth validates the bearer token and rejects requests without a valid
// owner identity. Every settlement endpoint acts on the caller's own cart
// and orders, so anonymous access is never meaningful here.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{"HS256"}))

			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			uid, ok := claims["user_id"].(float64)
			if !ok || uid <= 0 {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), TokenClaimsKey, claims)
			ctx = context.WithValue(ctx, OwnerIDKey, uint(uid))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerIDFromContext returns the authenticated owner id, if any.
func OwnerIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(OwnerIDKey).(uint)
	return id, ok
}
