// Package session хранит учётные данные и личность текущего пользователя витрины.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/validation"
)

// Ключи хранилища, под которыми сохраняется сессия.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// ErrMalformedCredential возвращается, если выданные сервером учётные данные не удалось разобрать.
var ErrMalformedCredential = errors.New("malformed credential")

// Error описывает отказ во входе или регистрации; Reason предназначен для показа пользователю.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string { return e.Reason }

func (e *Error) Unwrap() error { return e.Err }

// AuthAPI описывает методы бэкенда, которые использует хранилище сессии.
type AuthAPI interface {
	Login(ctx context.Context, creds backend.Credentials) (string, error)
	Register(ctx context.Context, reg backend.Registration) (*model.User, error)
}

// Store единолично записывает состояние сессии.
type Store struct {
	storage repository.Storage
	api     AuthAPI
	logger  *zap.Logger

	mu        sync.RWMutex
	user      *model.User
	token     string
	loading   bool
	listeners []func(*model.User)

	restoreOnce sync.Once
}

// New создаёт хранилище сессии. До вызова Restore флаг Loading установлен.
func New(storage repository.Storage, api AuthAPI, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		storage: storage,
		api:     api,
		logger:  logger,
		loading: true,
	}
}

// Restore восстанавливает сессию из хранилища без обращения к сети и снимает флаг Loading.
// Повторные вызовы ничего не делают.
func (s *Store) Restore(ctx context.Context) {
	s.restoreOnce.Do(func() {
		user, token := s.readStored(ctx)

		s.mu.Lock()
		s.user = user
		s.token = token
		s.loading = false
		s.mu.Unlock()

		if user != nil {
			s.logger.Info("session restored", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
			s.notify(user)
		}
	})
}

func (s *Store) readStored(ctx context.Context) (*model.User, string) {
	if s.storage == nil {
		return nil, ""
	}

	token, tokenErr := s.storage.Get(ctx, TokenKey)
	raw, userErr := s.storage.Get(ctx, UserKey)
	if errors.Is(tokenErr, repository.ErrNotFound) && errors.Is(userErr, repository.ErrNotFound) {
		return nil, ""
	}
	if err := errors.Join(ignoreNotFound(tokenErr), ignoreNotFound(userErr)); err != nil {
		s.logger.Warn("failed to read stored session", zap.Error(err))
		return nil, ""
	}

	var user model.User
	if token == "" || raw == "" || json.Unmarshal([]byte(raw), &user) != nil || user.Username == "" {
		s.logger.Warn("discarding inconsistent stored session")
		if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
			s.logger.Warn("failed to clear stored session", zap.Error(err))
		}
		return nil, ""
	}
	return &user, token
}

func ignoreNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// Login выполняет вход, декодирует личность из учётных данных и сохраняет сессию.
func (s *Store) Login(ctx context.Context, creds backend.Credentials) (*model.User, error) {
	token, err := s.api.Login(ctx, creds)
	if err != nil {
		s.logger.Info("login rejected", zap.String("username", creds.Username), zap.Error(err))
		return nil, &Error{Reason: backend.Message(err, "Login failed"), Err: err}
	}

	user, err := DecodeCredential(token)
	if err != nil {
		s.logger.Warn("failed to decode credential", zap.Error(err))
		return nil, &Error{Reason: "Login failed", Err: err}
	}

	s.mu.Lock()
	s.user = user
	s.token = token
	s.mu.Unlock()

	s.persist(ctx, user, token)
	s.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	s.notify(user)

	return user, nil
}

func (s *Store) persist(ctx context.Context, user *model.User, token string) {
	if s.storage == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		s.logger.Error("failed to encode user", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, TokenKey, token); err != nil {
		s.logger.Warn("failed to persist credential", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, UserKey, string(raw)); err != nil {
		s.logger.Warn("failed to persist user", zap.Error(err))
	}
}

// Register проверяет форму и регистрирует пользователя. Вход не выполняется.
func (s *Store) Register(ctx context.Context, reg backend.Registration) (*model.User, error) {
	if err := validation.Struct(reg); err != nil {
		return nil, &Error{Reason: err.Error(), Err: err}
	}

	user, err := s.api.Register(ctx, reg)
	if err != nil {
		s.logger.Info("registration rejected", zap.String("username", reg.Username), zap.Error(err))
		return nil, &Error{Reason: backend.Message(err, "Registration failed"), Err: err}
	}
	return user, nil
}

// Logout очищает сессию и удаляет оба ключа хранилища вместе.
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	had := s.user != nil
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	if s.storage != nil {
		if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
			s.logger.Warn("failed to clear stored session", zap.Error(err))
		}
	}
	if had {
		s.logger.Info("user logged out")
		s.notify(nil)
	}
}

// User возвращает копию текущего пользователя или nil.
func (s *Store) User() *model.User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token возвращает текущие учётные данные; реализует backend.TokenSource.
func (s *Store) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated сообщает, выполнен ли вход.
func (s *Store) IsAuthenticated() bool {
	return s.User() != nil
}

// IsAdmin сообщает, что текущий пользователь является администратором.
func (s *Store) IsAdmin() bool {
	return s.User().IsAdmin()
}

// Loading сообщает, что восстановление сессии ещё не завершено.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// OnChange подписывает fn на вход и выход пользователя. При выходе fn получает nil.
func (s *Store) OnChange(fn func(*model.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(user *model.User) {
	s.mu.RLock()
	listeners := make([]func(*model.User), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		if user == nil {
			fn(nil)
			continue
		}
		u := *user
		fn(&u)
	}
}

// credentialClaims описывает поля, которые бэкенд кладёт в учётные данные.
type credentialClaims struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Authorities any    `json:"authorities"`
	jwt.RegisteredClaims
}

// DecodeCredential извлекает личность и роль из учётных данных без проверки подписи.
func DecodeCredential(token string) (*model.User, error) {
	var claims credentialClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: subject %q is not a user id", ErrMalformedCredential, claims.Subject)
	}
	if claims.Username == "" {
		return nil, fmt.Errorf("%w: username claim is missing", ErrMalformedCredential)
	}

	return &model.User{
		ID:       id,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     roleOf(claims.Authorities),
	}, nil
}

// roleOf принимает authorities как строку "ROLE_A,ROLE_B" или как массив строк.
func roleOf(authorities any) model.Role {
	var roles []string
	switch v := authorities.(type) {
	case string:
		roles = strings.Split(v, ",")
	case []any:
		for _, r := range v {
			if str, ok := r.(string); ok {
				roles = append(roles, str)
			}
		}
	}

	role := model.RoleUser
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r == string(model.RoleAdmin) {
			return model.RoleAdmin
		}
		if r != "" && role == model.RoleUser {
			role = model.Role(r)
		}
	}
	return role
}
