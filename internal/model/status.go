package model

import (
	"fmt"
	"strings"
)

// OrderStatus описывает стадию жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusPaid       OrderStatus = "PAID"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// progression задаёт линейный порядок статусов; CANCELLED в него не входит.
var progression = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

// OrderStatuses возвращает все статусы в порядке отображения.
func OrderStatuses() []OrderStatus {
	return append(append([]OrderStatus(nil), progression...), OrderStatusCancelled)
}

// ParseOrderStatus разбирает статус без учёта регистра.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("invalid order status: %q", s)
	}
	return status, nil
}

// Valid сообщает, входит ли статус в фиксированный набор.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) rank() int {
	for i, st := range progression {
		if st == s {
			return i
		}
	}
	return -1
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo проверяет допустимость перехода: только вперёд по цепочке,
// отменить можно только заказ в PENDING.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.Valid() || !next.Valid() || s == next || s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return s == OrderStatusPending
	}
	return next.rank() > s.rank()
}

// Transitions возвращает статусы, в которые можно перевести заказ.
func (s OrderStatus) Transitions() []OrderStatus {
	var res []OrderStatus
	for _, next := range OrderStatuses() {
		if s.CanTransitionTo(next) {
			res = append(res, next)
		}
	}
	return res
}

// DisplayText возвращает подпись статуса для покупателя.
func (s OrderStatus) DisplayText() string {
	switch s {
	case OrderStatusPending:
		return "Order Placed"
	case OrderStatusPaid:
		return "Payment Confirmed"
	case OrderStatusProcessing:
		return "Being Prepared"
	case OrderStatusShipped:
		return "On the Way"
	case OrderStatusDelivered:
		return "Delivered"
	case OrderStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// StatusFilter выбирает заказы по статусу; FilterAll пропускает все.
type StatusFilter string

// FilterAll не ограничивает список по статусу.
const FilterAll StatusFilter = "ALL"

// ParseStatusFilter разбирает фильтр; пустая строка означает FilterAll.
func ParseStatusFilter(s string) (StatusFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(FilterAll)) {
		return FilterAll, nil
	}
	status, err := ParseOrderStatus(s)
	if err != nil {
		return "", err
	}
	return StatusFilter(status), nil
}

// FilterFor возвращает фильтр по одному статусу.
func FilterFor(status OrderStatus) StatusFilter {
	return StatusFilter(status)
}

// Status возвращает статус фильтра; ok == false для FilterAll.
func (f StatusFilter) Status() (OrderStatus, bool) {
	if f == FilterAll || f == "" {
		return "", false
	}
	return OrderStatus(f), true
}

// Matches сообщает, проходит ли статус через фильтр.
func (f StatusFilter) Matches(status OrderStatus) bool {
	s, ok := f.Status()
	return !ok || s == status
}
