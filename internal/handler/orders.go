package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/orders"
)

type orderLine struct {
	model.Order
	StatusText string `json:"statusText"`
	Total      string `json:"total"`
}

func orderLines(list []model.Order) []orderLine {
	res := make([]orderLine, 0, len(list))
	for _, o := range list {
		res = append(res, orderLine{
			Order:      o,
			StatusText: o.Status.DisplayText(),
			Total:      model.FormatMoney(model.Cents(o.TotalPrice)),
		})
	}
	return res
}

type ordersResponse struct {
	Filter  model.StatusFilter `json:"filter"`
	Orders  []orderLine        `json:"orders"`
	Summary orders.Summary     `json:"summary"`
}

// GetOrders возвращает заказы текущего пользователя с фильтром ?status= и сводкой.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	filter, err := model.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.Orders.List(r.Context(), userID, filter)
	if err != nil {
		h.logger.Error("get orders error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, "Failed to load orders", backendStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, ordersResponse{
		Filter:  filter,
		Orders:  orderLines(list),
		Summary: orders.Summarize(h.Orders.Cached(model.FilterAll)),
	})
}

type cancelResponse struct {
	OrderID int64             `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
}

// CancelOrder отменяет заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := idParam(r, "orderId")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.Orders.Cancel(r.Context(), userID, orderID); err != nil {
		if errors.Is(err, orders.ErrNotCancellable) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "Failed to cancel order", backendStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, cancelResponse{OrderID: orderID, Status: model.OrderStatusCancelled})
}
