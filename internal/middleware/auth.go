// Package middleware содержит HTTP middleware витрины.
package middleware

import (
	"context"
	"net/http"

	"github.com/mmeshcher/storefront/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// LoginPath указывает страницу, на которую перенаправляется неаутентифицированный пользователь.
const LoginPath = "/login"

const accessDeniedBody = "Access Denied\nYou don't have admin privileges to access this page.\n"

// SessionReader отдаёт состояние текущей сессии.
type SessionReader interface {
	User() *model.User
	Loading() bool
}

// AuthMiddleware пропускает запросы только при активной сессии.
type AuthMiddleware struct {
	sessions SessionReader
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware поверх хранилища сессии.
func NewAuthMiddleware(sessions SessionReader) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Middleware проверяет сессию и добавляет пользователя в контекст запроса.
// Пока сессия восстанавливается, отвечает 503; без сессии перенаправляет на страницу входа.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.sessions.Loading() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		user := a.sessions.User()
		if user == nil {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminOnly пропускает только администратора. Используется после Middleware.
func (a *AuthMiddleware) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		if !user.IsAdmin() {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(accessDeniedBody))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext извлекает пользователя из контекста запроса.
func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// GetUserIDFromContext извлекает идентификатор пользователя из контекста запроса.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	user, ok := GetUserFromContext(ctx)
	if !ok {
		return 0, false
	}
	return user.ID, true
}
