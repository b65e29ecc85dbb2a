// Package orders реализует историю заказов покупателя.
package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
)

// ErrNotCancellable возвращается при попытке отменить заказ не в статусе PENDING.
var ErrNotCancellable = errors.New("only pending orders can be cancelled")

// API описывает методы бэкенда для заказов покупателя.
type API interface {
	UserOrders(ctx context.Context, userID int64) ([]model.Order, error)
	CancelOrder(ctx context.Context, orderID, userID int64) error
}

// Notifier показывает пользователю результат действия.
type Notifier interface {
	Success(message string) string
	Error(message string) string
}

// Summary содержит сводку по заказам пользователя.
type Summary struct {
	TotalOrders     int          `json:"totalOrders"`
	TotalSpent      float64      `json:"totalSpent"`
	PendingOrders   int          `json:"pendingOrders"`
	CompletedOrders int          `json:"completedOrders"`
	RecentOrder     *model.Order `json:"recentOrder,omitempty"`
}

// Summarize считает сводку; самым свежим считается первый заказ в ответе бэкенда.
func Summarize(orders []model.Order) Summary {
	s := Summary{TotalOrders: len(orders)}
	var spent int64
	for _, o := range orders {
		spent += model.Cents(o.TotalPrice)
		switch o.Status {
		case model.OrderStatusPending:
			s.PendingOrders++
		case model.OrderStatusDelivered:
			s.CompletedOrders++
		}
	}
	s.TotalSpent = float64(spent) / 100
	if len(orders) > 0 {
		recent := orders[0]
		s.RecentOrder = &recent
	}
	return s
}

// History хранит последний полученный список заказов пользователя.
type History struct {
	api    API
	notes  Notifier
	logger *zap.Logger

	mu     sync.Mutex
	userID int64
	orders []model.Order
}

// NewHistory создаёт историю заказов.
func NewHistory(api API, notes Notifier, logger *zap.Logger) *History {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{api: api, notes: notes, logger: logger}
}

// List получает заказы пользователя и фильтрует их по статусу на стороне клиента.
func (h *History) List(ctx context.Context, userID int64, filter model.StatusFilter) ([]model.Order, error) {
	orders, err := h.api.UserOrders(ctx, userID)
	if err != nil {
		h.logger.Warn("failed to load orders", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("get user orders: %w", err)
	}

	h.mu.Lock()
	h.userID = userID
	h.orders = orders
	h.mu.Unlock()

	return filterOrders(orders, filter), nil
}

// Cancel отменяет заказ. Список обновляется только после ответа бэкенда.
func (h *History) Cancel(ctx context.Context, userID, orderID int64) error {
	h.mu.Lock()
	if h.userID == userID {
		for _, o := range h.orders {
			if o.ID == orderID && o.Status != model.OrderStatusPending {
				h.mu.Unlock()
				return fmt.Errorf("%w: order #%d is %s", ErrNotCancellable, orderID, o.Status)
			}
		}
	}
	h.mu.Unlock()

	if err := h.api.CancelOrder(ctx, orderID, userID); err != nil {
		h.logger.Warn("failed to cancel order", zap.Int64("order_id", orderID), zap.Error(err))
		if h.notes != nil {
			h.notes.Error("Failed to cancel order. Please try again.")
		}
		return fmt.Errorf("cancel order: %w", err)
	}

	h.mu.Lock()
	if h.userID == userID {
		for i := range h.orders {
			if h.orders[i].ID == orderID {
				h.orders[i].Status = model.OrderStatusCancelled
			}
		}
	}
	h.mu.Unlock()

	h.logger.Info("order cancelled", zap.Int64("order_id", orderID))
	if h.notes != nil {
		h.notes.Success(fmt.Sprintf("Order #%d cancelled", orderID))
	}
	return nil
}

// Cached возвращает последний полученный список с фильтром.
func (h *History) Cached(filter model.StatusFilter) []model.Order {
	h.mu.Lock()
	defer h.mu.Unlock()
	return filterOrders(h.orders, filter)
}

func filterOrders(orders []model.Order, filter model.StatusFilter) []model.Order {
	res := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if filter.Matches(o.Status) {
			res = append(res, o)
		}
	}
	return res
}
