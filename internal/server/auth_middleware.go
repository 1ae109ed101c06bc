package server

import (
	"net/http"
	"strconv"
	"strings"

	"crowdstack-backend/internal/domain"
	"crowdstack-backend/internal/server/authctx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthMiddleware validates the caller's JWT and puts the resolved caller in
// the request context. Tokens are minted by the identity service; only the
// subject and roles claims are read here.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			tokenStr := strings.TrimPrefix(auth, "Bearer ")
			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			sub, _ := claims["sub"].(string)
			id, err := uuid.Parse(sub)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid subject")
				return
			}
			ctx := authctx.WithCaller(r.Context(), domain.Caller{
				ID:    id,
				Roles: rolesClaim(claims["roles"]),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rolesClaim(v any) []domain.Role {
	list, ok := v.([]any)
	if !ok {
		if s, ok := v.(string); ok && s != "" {
			return []domain.Role{domain.Role(s)}
		}
		return nil
	}
	roles := make([]domain.Role, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			roles = append(roles, domain.Role(s))
		}
	}
	return roles
}

// RequireRole ensures the caller has at least one of the allowed roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := authctx.FromContext(r.Context())
			if c == nil {
				writeAuthError(w, http.StatusForbidden, "forbidden")
				return
			}
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if !c.HasRole(roles...) {
				writeAuthError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"status":"error","message":"` + message + `","data":null,"error":{"code":` + strconv.Itoa(status) + `,"status":"` + http.StatusText(status) + `"}}`))
}
