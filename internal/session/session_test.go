package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/validation"
)

type stubAuthAPI struct {
	token       string
	loginErr    error
	registerErr error

	loginCalls    int
	registerCalls int
}

func (s *stubAuthAPI) Login(_ context.Context, _ backend.Credentials) (string, error) {
	s.loginCalls++
	return s.token, s.loginErr
}

func (s *stubAuthAPI) Register(_ context.Context, reg backend.Registration) (*model.User, error) {
	s.registerCalls++
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &model.User{ID: 7, Username: reg.Username, Email: reg.Email}, nil
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func TestStore_RestoreClearsLoadingOnce(t *testing.T) {
	ctx := context.Background()
	storage := repository.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, TokenKey, "stored.token.value"))
	require.NoError(t, storage.Set(ctx, UserKey, `{"id":3,"username":"bob","role":"ROLE_USER"}`))

	s := New(storage, &stubAuthAPI{}, zap.NewNop())
	assert.True(t, s.Loading())
	assert.False(t, s.IsAuthenticated())

	var changes int
	s.OnChange(func(*model.User) { changes++ })

	s.Restore(ctx)
	s.Restore(ctx)

	assert.False(t, s.Loading())
	require.NotNil(t, s.User())
	assert.Equal(t, "bob", s.User().Username)
	assert.Equal(t, "stored.token.value", s.Token())
	assert.Equal(t, 1, changes)
}

func TestStore_RestoreDiscardsCorruptEntry(t *testing.T) {
	ctx := context.Background()
	storage := repository.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, TokenKey, "stored.token.value"))
	require.NoError(t, storage.Set(ctx, UserKey, "{broken"))

	s := New(storage, &stubAuthAPI{}, zap.NewNop())
	s.Restore(ctx)

	assert.False(t, s.Loading())
	assert.Nil(t, s.User())

	_, err := storage.Get(ctx, TokenKey)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = storage.Get(ctx, UserKey)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_LoginDecodesRoleAndPersists(t *testing.T) {
	tests := []struct {
		name        string
		authorities any
		wantAdmin   bool
	}{
		{name: "admin string", authorities: "ROLE_ADMIN", wantAdmin: true},
		{name: "admin in list", authorities: []string{"ROLE_USER", "ROLE_ADMIN"}, wantAdmin: true},
		{name: "regular user", authorities: "ROLE_USER", wantAdmin: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			storage := repository.NewMemoryStorage()
			token := signedToken(t, jwt.MapClaims{
				"sub":         "42",
				"username":    "alice",
				"authorities": tt.authorities,
			})

			s := New(storage, &stubAuthAPI{token: token}, zap.NewNop())
			s.Restore(ctx)

			user, err := s.Login(ctx, backend.Credentials{Username: "alice", Password: "secret"})
			require.NoError(t, err)

			assert.Equal(t, int64(42), user.ID)
			assert.Equal(t, "alice", user.Username)
			assert.Equal(t, tt.wantAdmin, s.IsAdmin())
			assert.Equal(t, token, s.Token())

			stored, err := storage.Get(ctx, TokenKey)
			require.NoError(t, err)
			assert.Equal(t, token, stored)

			restored := New(storage, &stubAuthAPI{}, zap.NewNop())
			restored.Restore(ctx)
			assert.Equal(t, tt.wantAdmin, restored.IsAdmin())
		})
	}
}

func TestStore_LoginMalformedCredential(t *testing.T) {
	s := New(repository.NewMemoryStorage(), &stubAuthAPI{token: "not-a-jwt"}, zap.NewNop())
	s.Restore(context.Background())

	_, err := s.Login(context.Background(), backend.Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedCredential)
	assert.False(t, s.IsAuthenticated())
}

func TestStore_LoginServerReason(t *testing.T) {
	api := &stubAuthAPI{loginErr: &backend.APIError{Status: http.StatusUnauthorized, Message: "Invalid username or password"}}
	s := New(repository.NewMemoryStorage(), api, zap.NewNop())

	_, err := s.Login(context.Background(), backend.Credentials{Username: "a", Password: "b"})

	var sessErr *Error
	require.True(t, errors.As(err, &sessErr))
	assert.Equal(t, "Invalid username or password", sessErr.Reason)
	assert.True(t, backend.IsUnauthorized(err))
}

func TestStore_LoginGenericReason(t *testing.T) {
	api := &stubAuthAPI{loginErr: errors.New("connection refused")}
	s := New(repository.NewMemoryStorage(), api, zap.NewNop())

	_, err := s.Login(context.Background(), backend.Credentials{Username: "a", Password: "b"})
	require.Error(t, err)
	assert.Equal(t, "Login failed", err.Error())
}

func TestStore_RegisterValidatesBeforeCall(t *testing.T) {
	api := &stubAuthAPI{}
	s := New(repository.NewMemoryStorage(), api, zap.NewNop())

	_, err := s.Register(context.Background(), backend.Registration{Username: "bob", Email: "bob@", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, "Please enter a valid email address", err.Error())

	var verrs validation.Errors
	assert.True(t, errors.As(err, &verrs))
	assert.Zero(t, api.registerCalls)

	user, err := s.Register(context.Background(), backend.Registration{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.False(t, s.IsAuthenticated())
}

func TestStore_RegisterFailureReason(t *testing.T) {
	api := &stubAuthAPI{registerErr: &backend.APIError{Status: http.StatusBadRequest}}
	s := New(repository.NewMemoryStorage(), api, zap.NewNop())

	_, err := s.Register(context.Background(), backend.Registration{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.Error(t, err)
	assert.Equal(t, "Registration failed", err.Error())
}

func TestStore_LogoutClearsBothKeys(t *testing.T) {
	ctx := context.Background()
	storage := repository.NewMemoryStorage()
	token := signedToken(t, jwt.MapClaims{"sub": "1", "username": "alice", "authorities": "ROLE_USER"})

	s := New(storage, &stubAuthAPI{token: token}, zap.NewNop())
	s.Restore(ctx)

	var last *model.User
	var calls int
	s.OnChange(func(u *model.User) {
		calls++
		last = u
	})

	_, err := s.Login(ctx, backend.Credentials{Username: "alice", Password: "pw"})
	require.NoError(t, err)
	require.NotNil(t, last)

	s.Logout(ctx)

	assert.Nil(t, s.User())
	assert.Empty(t, s.Token())
	assert.Nil(t, last)
	assert.Equal(t, 2, calls)

	_, err = storage.Get(ctx, TokenKey)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = storage.Get(ctx, UserKey)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDecodeCredential_MissingSubject(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"username": "alice"})

	_, err := DecodeCredential(token)
	assert.ErrorIs(t, err, ErrMalformedCredential)
}
