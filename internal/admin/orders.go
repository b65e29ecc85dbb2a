// Package admin реализует сценарии панели администратора: управление заказами и товарами.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/model"
)

var (
	// ErrUpdateInFlight возвращается, пока предыдущее изменение статуса того же заказа не завершено.
	ErrUpdateInFlight = errors.New("status update already in progress for this order")
	// ErrInvalidTransition возвращается для перехода, которого нет в таблице статусов.
	ErrInvalidTransition = errors.New("status transition is not allowed")
	// ErrUnknownOrder возвращается, если заказа нет в загруженном списке.
	ErrUnknownOrder = errors.New("order is not in the current list")
)

// OrdersAPI описывает методы бэкенда для управления заказами.
type OrdersAPI interface {
	AdminOrders(ctx context.Context) ([]model.Order, error)
	AdminOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error)
	OrderStats(ctx context.Context) (*model.OrderStats, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error)
}

// Notifier показывает пользователю результат действия.
type Notifier interface {
	Success(message string) string
	Error(message string) string
	Warning(message string) string
}

// Orders хранит видимый список заказов, статистику и признаки выполняющихся изменений.
type Orders struct {
	api    OrdersAPI
	notes  Notifier
	logger *zap.Logger

	mu       sync.Mutex
	filter   model.StatusFilter
	list     []model.Order
	stats    *model.OrderStats
	updating map[int64]bool
}

// NewOrders создаёт сценарий управления заказами.
func NewOrders(api OrdersAPI, notes Notifier, logger *zap.Logger) *Orders {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orders{
		api:      api,
		notes:    notes,
		logger:   logger,
		filter:   model.FilterAll,
		updating: make(map[int64]bool),
	}
}

// ListOrders получает заказы по фильтру и делает их видимым списком.
func (o *Orders) ListOrders(ctx context.Context, filter model.StatusFilter) ([]model.Order, error) {
	var (
		list []model.Order
		err  error
	)
	if status, ok := filter.Status(); ok {
		list, err = o.api.AdminOrdersByStatus(ctx, status)
	} else {
		filter = model.FilterAll
		list, err = o.api.AdminOrders(ctx)
	}
	if err != nil {
		o.logger.Warn("failed to load orders", zap.String("filter", string(filter)), zap.Error(err))
		return nil, fmt.Errorf("load orders: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.filter = filter
	o.list = list
	return cloneOrders(list), nil
}

// Visible возвращает текущий видимый список.
func (o *Orders) Visible() []model.Order {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneOrders(o.list)
}

// Filter возвращает фильтр видимого списка.
func (o *Orders) Filter() model.StatusFilter {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filter
}

// Stats получает статистику. Ошибка не показывается пользователю: возвращается
// последняя успешно полученная статистика или nil.
func (o *Orders) Stats(ctx context.Context) *model.OrderStats {
	stats, err := o.api.OrderStats(ctx)
	if err != nil {
		o.logger.Debug("order stats unavailable", zap.Error(err))
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.stats
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats = stats
	s := *stats
	return &s
}

// Updating сообщает, что для заказа выполняется изменение статуса.
func (o *Orders) Updating(orderID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.updating[orderID]
}

// AllowedTransitions возвращает статусы, доступные для перевода заказа.
func AllowedTransitions(status model.OrderStatus) []model.OrderStatus {
	return status.Transitions()
}

// SetStatus переводит заказ в новый статус. Переход проверяется до запроса,
// видимый список меняется только после ответа бэкенда, затем перечитывается статистика.
func (o *Orders) SetStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error) {
	o.mu.Lock()
	current, ok := o.findLocked(orderID)
	if !ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: #%d", ErrUnknownOrder, orderID)
	}
	if !current.Status.CanTransitionTo(status) {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	if o.updating[orderID] {
		o.mu.Unlock()
		return nil, ErrUpdateInFlight
	}
	o.updating[orderID] = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.updating, orderID)
		o.mu.Unlock()
	}()

	updated, err := o.api.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		o.logger.Warn("failed to update order status",
			zap.Int64("order_id", orderID),
			zap.String("status", status.String()),
			zap.Error(err),
		)
		o.notify(false, "Failed to update order status: "+backend.Message(err, err.Error()))
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if updated == nil || updated.ID == 0 {
		fallback := current
		fallback.Status = status
		updated = &fallback
	}

	o.mu.Lock()
	for i := range o.list {
		if o.list[i].ID == orderID {
			o.list[i] = *updated
		}
	}
	o.mu.Unlock()

	o.Stats(ctx)

	o.logger.Info("order status updated", zap.Int64("order_id", orderID), zap.String("status", status.String()))
	o.notify(true, fmt.Sprintf("Order #%d status updated to %s", orderID, status))

	res := *updated
	return &res, nil
}

func (o *Orders) findLocked(orderID int64) (model.Order, bool) {
	for _, ord := range o.list {
		if ord.ID == orderID {
			return ord, true
		}
	}
	return model.Order{}, false
}

func (o *Orders) notify(ok bool, message string) {
	if o.notes == nil {
		return
	}
	if ok {
		o.notes.Success(message)
		return
	}
	o.notes.Error(message)
}

func cloneOrders(list []model.Order) []model.Order {
	if list == nil {
		return nil
	}
	res := make([]model.Order, len(list))
	copy(res, list)
	return res
}
