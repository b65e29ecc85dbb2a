// Package checkout реализует выбор позиций корзины, оформление заказа и его оплату.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mmeshcher/storefront/internal/model"
)

var (
	// ErrEmptySelection возвращается при попытке оформить заказ без выбранных позиций.
	ErrEmptySelection = errors.New("please select items to checkout")
	// ErrInvalidOrderResponse возвращается, если бэкенд не вернул идентификатор заказа.
	ErrInvalidOrderResponse = errors.New("invalid order response")
)

// Selection хранит отмеченные позиции корзины. Новые позиции отмечаются автоматически,
// позиции без товара не отмечаются никогда.
type Selection struct {
	mu       sync.Mutex
	items    []model.CartItem
	selected map[int64]bool
	seen     map[int64]bool
}

// NewSelection создаёт пустой выбор.
func NewSelection() *Selection {
	return &Selection{
		selected: make(map[int64]bool),
		seen:     make(map[int64]bool),
	}
}

// Sync принимает свежий состав корзины.
func (s *Selection) Sync(items []model.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append([]model.CartItem(nil), items...)
	present := make(map[int64]bool, len(items))
	for _, it := range items {
		present[it.ID] = true
		if !it.Available() {
			delete(s.selected, it.ID)
			continue
		}
		if !s.seen[it.ID] {
			s.selected[it.ID] = true
		}
		s.seen[it.ID] = true
	}
	for id := range s.seen {
		if !present[id] {
			delete(s.seen, id)
			delete(s.selected, id)
		}
	}
}

// Toggle меняет отметку позиции и возвращает новое состояние.
func (s *Selection) Toggle(itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.items {
		if it.ID == itemID && it.Available() {
			s.selected[itemID] = !s.selected[itemID]
			return s.selected[itemID]
		}
	}
	return false
}

// ToggleAll отмечает все доступные позиции либо снимает все отметки, если всё уже отмечено.
func (s *Selection) ToggleAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := true
	for _, it := range s.items {
		if it.Available() && !s.selected[it.ID] {
			all = false
			break
		}
	}
	for _, it := range s.items {
		if it.Available() {
			s.selected[it.ID] = !all
		}
	}
}

// Selected сообщает, отмечена ли позиция.
func (s *Selection) Selected(itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[itemID]
}

// IDs возвращает идентификаторы отмеченных доступных позиций в порядке корзины.
func (s *Selection) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for _, it := range s.items {
		if it.Available() && s.selected[it.ID] {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Total возвращает сумму отмеченных доступных позиций в центах.
func (s *Selection) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, it := range s.items {
		if s.selected[it.ID] {
			total += it.LineTotal()
		}
	}
	return total
}

// Reset очищает выбор.
func (s *Selection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.selected = make(map[int64]bool)
	s.seen = make(map[int64]bool)
}

// OrderCreator создаёт заказ из позиций корзины.
type OrderCreator interface {
	CreateOrderFromItems(ctx context.Context, cartID int64, itemIDs []int64) (*model.Order, error)
}

// PlaceOrder оформляет заказ из выбранных позиций. Пустой выбор отклоняется без обращения к бэкенду.
func PlaceOrder(ctx context.Context, api OrderCreator, cartID int64, itemIDs []int64) (*model.Order, error) {
	if len(itemIDs) == 0 {
		return nil, ErrEmptySelection
	}

	order, err := api.CreateOrderFromItems(ctx, cartID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if order == nil || order.ID == 0 {
		return nil, ErrInvalidOrderResponse
	}
	return order, nil
}
