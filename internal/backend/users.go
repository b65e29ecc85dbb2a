package backend

import (
	"context"
	"net/http"

	"github.com/mmeshcher/storefront/internal/model"
)

// Credentials содержит логин и пароль пользователя.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration содержит поля формы регистрации.
type Registration struct {
	Username string `json:"username" validate:"notblank"`
	Email    string `json:"email" validate:"notblank,emailaddr"`
	Password string `json:"password" validate:"notblank"`
}

// Login выполняет вход и возвращает выданные сервером учётные данные.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	return c.callText(ctx, http.MethodPost, "/api/user/login", creds)
}

// Register регистрирует нового пользователя.
func (c *Client) Register(ctx context.Context, reg Registration) (*model.User, error) {
	var u model.User
	if err := c.call(ctx, http.MethodPost, "/api/user/register", reg, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
