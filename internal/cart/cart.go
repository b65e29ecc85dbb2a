// Package cart реализует сценарий работы с корзиной текущего пользователя.
package cart

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
	// ErrCartNotInitialized возвращается, если корзина ещё не получена или не создана.
	ErrCartNotInitialized = errors.New("cart not initialized")
	// ErrInvalidQuantity возвращается при количестве меньше единицы.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// API описывает методы бэкенда, используемые корзиной.
type API interface {
	CartByUser(ctx context.Context, userID int64) (*model.Cart, error)
	CreateCart(ctx context.Context, userID int64) (*model.Cart, error)
	CartItems(ctx context.Context, cartID int64) ([]model.CartItem, error)
	AddToCart(ctx context.Context, cartID, productID int64, quantity int) error
	RemoveFromCart(ctx context.Context, cartID, productID int64) error
}

// Notifier показывает пользователю результат действия.
type Notifier interface {
	Success(message string) string
	Error(message string) string
}

// Workflow хранит идентификатор корзины и последний полученный состав.
type Workflow struct {
	api    API
	notes  Notifier
	logger *zap.Logger

	mu     sync.Mutex
	userID int64
	cartID int64
	items  []model.CartItem
	count  int
	// gen увеличивается при Reset; ответы, пришедшие для старого поколения, отбрасываются.
	gen uint64
}

// NewWorkflow создаёт сценарий корзины.
func NewWorkflow(api API, notes Notifier, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{api: api, notes: notes, logger: logger}
}

// EnsureCart возвращает корзину пользователя, создавая её при отсутствии.
func (w *Workflow) EnsureCart(ctx context.Context, userID int64) (int64, error) {
	w.mu.Lock()
	if w.cartID != 0 && w.userID == userID {
		id := w.cartID
		w.mu.Unlock()
		return id, nil
	}
	gen := w.gen
	w.mu.Unlock()

	cart, err := w.api.CartByUser(ctx, userID)
	if err != nil && !backend.IsAPIError(err) {
		return 0, fmt.Errorf("get cart: %w", err)
	}
	if err != nil || cart == nil || cart.ID == 0 {
		w.logger.Info("cart not found, creating", zap.Int64("user_id", userID), zap.Error(err))
		cart, err = w.api.CreateCart(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("create cart: %w", err)
		}
		if cart == nil || cart.ID == 0 {
			return 0, errors.New("create cart: response has no cart id")
		}
	}

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return 0, ErrCartNotInitialized
	}
	w.userID = userID
	w.cartID = cart.ID
	w.mu.Unlock()

	if _, err := w.Refresh(ctx); err != nil {
		w.logger.Warn("failed to count cart items", zap.Int64("cart_id", cart.ID), zap.Error(err))
	}
	return cart.ID, nil
}

// CartID возвращает идентификатор установленной корзины.
func (w *Workflow) CartID() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cartID, w.cartID != 0
}

func (w *Workflow) current() (int64, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cartID == 0 {
		return 0, 0, ErrCartNotInitialized
	}
	return w.cartID, w.gen, nil
}

// AddItem добавляет товар в корзину и пересчитывает количество позиций.
func (w *Workflow) AddItem(ctx context.Context, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	cartID, _, err := w.current()
	if err != nil {
		return err
	}

	if err := w.api.AddToCart(ctx, cartID, productID, quantity); err != nil {
		w.logger.Warn("failed to add product to cart", zap.Int64("product_id", productID), zap.Error(err))
		w.notify(false, "Failed to add product to cart")
		return fmt.Errorf("add to cart: %w", err)
	}
	w.notify(true, "Product added to cart!")

	if _, err := w.Refresh(ctx); err != nil {
		w.logger.Warn("failed to refresh cart", zap.Error(err))
	}
	return nil
}

// RemoveItem удаляет товар из корзины и пересчитывает количество позиций.
func (w *Workflow) RemoveItem(ctx context.Context, productID int64) error {
	cartID, _, err := w.current()
	if err != nil {
		return err
	}

	if err := w.api.RemoveFromCart(ctx, cartID, productID); err != nil {
		w.logger.Warn("failed to remove product from cart", zap.Int64("product_id", productID), zap.Error(err))
		w.notify(false, "Failed to remove item from cart")
		return fmt.Errorf("remove from cart: %w", err)
	}
	w.notify(true, "Item removed from cart")

	if _, err := w.Refresh(ctx); err != nil {
		w.logger.Warn("failed to refresh cart", zap.Error(err))
	}
	return nil
}

// Refresh заново получает состав корзины и пересчитывает количество.
func (w *Workflow) Refresh(ctx context.Context) ([]model.CartItem, error) {
	cartID, gen, err := w.current()
	if err != nil {
		return nil, err
	}

	items, err := w.api.CartItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return nil, ErrCartNotInitialized
	}
	w.items = items
	w.count = CountItems(items)
	return cloneItems(items), nil
}

// Items возвращает свежий состав корзины.
func (w *Workflow) Items(ctx context.Context) ([]model.CartItem, error) {
	return w.Refresh(ctx)
}

// ItemCount возвращает количество единиц товара по последнему полученному составу.
func (w *Workflow) ItemCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Reset забывает корзину; вызывается при выходе пользователя.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.userID = 0
	w.cartID = 0
	w.items = nil
	w.count = 0
}

func (w *Workflow) notify(ok bool, message string) {
	if w.notes == nil {
		return
	}
	if ok {
		w.notes.Success(message)
		return
	}
	w.notes.Error(message)
}

// CountItems суммирует количество по позициям, которые удалось сопоставить с товаром.
func CountItems(items []model.CartItem) int {
	total := 0
	for _, it := range items {
		if it.Available() {
			total += it.Quantity
		}
	}
	return total
}

func cloneItems(items []model.CartItem) []model.CartItem {
	if items == nil {
		return nil
	}
	res := make([]model.CartItem, len(items))
	copy(res, items)
	return res
}
