package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmeshcher/storefront/internal/model"
)

// CartByUser возвращает корзину пользователя.
func (c *Client) CartByUser(ctx context.Context, userID int64) (*model.Cart, error) {
	var cart model.Cart
	if err := c.call(ctx, http.MethodGet, "/api/cart/user/"+id(userID), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// CreateCart создаёт корзину для пользователя.
func (c *Client) CreateCart(ctx context.Context, userID int64) (*model.Cart, error) {
	var cart model.Cart
	if err := c.call(ctx, http.MethodPost, "/api/cart/create/"+id(userID), nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// CartItems возвращает позиции корзины.
func (c *Client) CartItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := c.call(ctx, http.MethodGet, "/api/cart/"+id(cartID)+"/items", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AddToCart добавляет товар в корзину в указанном количестве.
func (c *Client) AddToCart(ctx context.Context, cartID, productID int64, quantity int) error {
	path := fmt.Sprintf("/api/cart/%d/add/%d?quantity=%d", cartID, productID, quantity)
	return c.call(ctx, http.MethodPost, path, nil, nil)
}

// RemoveFromCart удаляет товар из корзины.
func (c *Client) RemoveFromCart(ctx context.Context, cartID, productID int64) error {
	path := fmt.Sprintf("/api/cart/%d/remove/%d", cartID, productID)
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}
