package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmeshcher/storefront/internal/model"
)

// CreateOrderFromItems оформляет заказ из выбранных позиций корзины.
func (c *Client) CreateOrderFromItems(ctx context.Context, cartID int64, itemIDs []int64) (*model.Order, error) {
	var o model.Order
	path := fmt.Sprintf("/api/orders/cart/%d/items", cartID)
	if err := c.call(ctx, http.MethodPost, path, itemIDs, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Order возвращает заказ пользователя.
func (c *Client) Order(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	var o model.Order
	path := fmt.Sprintf("/api/orders/%d/user/%d", orderID, userID)
	if err := c.call(ctx, http.MethodGet, path, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// UserOrders возвращает все заказы пользователя.
func (c *Client) UserOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	var orders []model.Order
	if err := c.call(ctx, http.MethodGet, "/api/orders/user/"+id(userID), nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CancelOrder отменяет заказ пользователя.
func (c *Client) CancelOrder(ctx context.Context, orderID, userID int64) error {
	path := fmt.Sprintf("/api/orders/%d/user/%d/cancel", orderID, userID)
	return c.call(ctx, http.MethodPut, path, nil, nil)
}

// AdminOrders возвращает все заказы магазина.
func (c *Client) AdminOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := c.call(ctx, http.MethodGet, "/api/admin/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// AdminOrdersByStatus возвращает заказы в указанном статусе.
func (c *Client) AdminOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	var orders []model.Order
	if err := c.call(ctx, http.MethodGet, "/api/admin/orders/status/"+status.String(), nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// OrderStats возвращает агрегированную статистику заказов.
func (c *Client) OrderStats(ctx context.Context) (*model.OrderStats, error) {
	var stats model.OrderStats
	if err := c.call(ctx, http.MethodGet, "/api/admin/orders/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

type statusUpdateRequest struct {
	Status model.OrderStatus `json:"status"`
}

// UpdateOrderStatus переводит заказ в новый статус и возвращает обновлённый заказ.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error) {
	var o model.Order
	path := fmt.Sprintf("/api/admin/orders/%d/status", orderID)
	if err := c.call(ctx, http.MethodPut, path, statusUpdateRequest{Status: status}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
