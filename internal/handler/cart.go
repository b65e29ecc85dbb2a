package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/cart"
	"github.com/mmeshcher/storefront/internal/checkout"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
)

type cartLine struct {
	model.CartItem
	Available bool   `json:"available"`
	Selected  bool   `json:"selected"`
	LineTotal string `json:"lineTotal,omitempty"`
}

type cartResponse struct {
	CartID      int64      `json:"cartId"`
	Items       []cartLine `json:"items"`
	SelectedIDs []int64    `json:"selectedIds"`
	Total       string     `json:"total"`
	ItemCount   int        `json:"itemCount"`
}

func (h *Handler) cartView(cartID int64, items []model.CartItem) cartResponse {
	resp := cartResponse{
		CartID:      cartID,
		Items:       make([]cartLine, 0, len(items)),
		SelectedIDs: h.Selection.IDs(),
		Total:       model.FormatMoney(h.Selection.Total()),
		ItemCount:   cart.CountItems(items),
	}
	for _, it := range items {
		line := cartLine{
			CartItem:  it,
			Available: it.Available(),
			Selected:  h.Selection.Selected(it.ID),
		}
		if line.Available {
			line.LineTotal = model.FormatMoney(it.LineTotal())
		}
		resp.Items = append(resp.Items, line)
	}
	return resp
}

// GetCart возвращает состав корзины с отметками выбора.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	cartID, err := h.Cart.EnsureCart(r.Context(), userID)
	if err != nil {
		h.logger.Error("ensure cart error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	items, err := h.Cart.Items(r.Context())
	if err != nil {
		h.logger.Error("get cart items error", zap.Error(err), zap.Int64("cartID", cartID))
		http.Error(w, "Failed to load cart items", http.StatusBadGateway)
		return
	}

	h.Selection.Sync(items)
	writeJSON(w, http.StatusOK, h.cartView(cartID, items))
}

type addItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartCountResponse struct {
	ItemCount int `json:"itemCount"`
}

// AddCartItem добавляет товар в корзину. Без тела запроса добавляется одна единица.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	productID, ok := idParam(r, "productId")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req := addItemRequest{Quantity: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	if _, err := h.Cart.EnsureCart(r.Context(), userID); err != nil {
		h.logger.Error("ensure cart error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if err := h.Cart.AddItem(r.Context(), productID, req.Quantity); err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, cart.ErrCartNotInitialized):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "Failed to add product to cart", backendStatus(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, cartCountResponse{ItemCount: h.Cart.ItemCount()})
}

// RemoveCartItem удаляет товар из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(r, "productId")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.Cart.RemoveItem(r.Context(), productID); err != nil {
		if errors.Is(err, cart.ErrCartNotInitialized) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "Failed to remove item from cart", backendStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, cartCountResponse{ItemCount: h.Cart.ItemCount()})
}

type selectionResponse struct {
	SelectedIDs []int64 `json:"selectedIds"`
	Total       string  `json:"total"`
}

// ToggleCartItem переключает выбор позиции.
func (h *Handler) ToggleCartItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := idParam(r, "itemId")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.Selection.Toggle(itemID)
	writeJSON(w, http.StatusOK, selectionResponse{
		SelectedIDs: h.Selection.IDs(),
		Total:       model.FormatMoney(h.Selection.Total()),
	})
}

// ToggleAllCartItems выбирает все доступные позиции или снимает выбор со всех.
func (h *Handler) ToggleAllCartItems(w http.ResponseWriter, r *http.Request) {
	h.Selection.ToggleAll()
	writeJSON(w, http.StatusOK, selectionResponse{
		SelectedIDs: h.Selection.IDs(),
		Total:       model.FormatMoney(h.Selection.Total()),
	})
}

type placeOrderResponse struct {
	OrderID  int64  `json:"orderId"`
	Redirect string `json:"redirect"`
}

// PlaceOrder оформляет заказ из выбранных позиций и открывает оплату.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	cartID, ok := h.Cart.CartID()
	if !ok {
		http.Error(w, cart.ErrCartNotInitialized.Error(), http.StatusConflict)
		return
	}

	order, err := checkout.PlaceOrder(r.Context(), h.Backend, cartID, h.Selection.IDs())
	if err != nil {
		if errors.Is(err, checkout.ErrEmptySelection) {
			h.Notes.Warning("Please select items to checkout")
			http.Error(w, "Please select items to checkout", http.StatusBadRequest)
			return
		}
		h.logger.Error("place order error", zap.Error(err), zap.Int64("cartID", cartID))
		h.Notes.Error("Failed to create order. Please try again.")
		http.Error(w, "Failed to create order", http.StatusBadGateway)
		return
	}

	h.checkoutFor(userID, order.ID)
	h.logger.Info("order placed", zap.Int64("orderID", order.ID), zap.Int64("userID", userID))

	redirect := fmt.Sprintf("/checkout/%d", order.ID)
	w.Header().Set("Location", redirect)
	writeJSON(w, http.StatusCreated, placeOrderResponse{OrderID: order.ID, Redirect: redirect})
}
