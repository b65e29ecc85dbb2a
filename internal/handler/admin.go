package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/admin"
	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/validation"
)

const maxProductUpload = 10 << 20

// AdminOverview возвращает статистику и сводку по каталогу.
func (h *Handler) AdminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := admin.LoadOverview(r.Context(), h.Backend, h.Backend, h.logger)
	if err != nil {
		h.logger.Error("load admin overview error", zap.Error(err))
		http.Error(w, "Failed to load dashboard data", backendStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

type adminOrderRow struct {
	orderLine
	Updating    bool                `json:"updating"`
	Transitions []model.OrderStatus `json:"allowedTransitions"`
}

type adminOrdersResponse struct {
	Filter model.StatusFilter `json:"filter"`
	Orders []adminOrderRow    `json:"orders"`
}

func (h *Handler) adminOrdersView(filter model.StatusFilter, list []model.Order) adminOrdersResponse {
	resp := adminOrdersResponse{Filter: filter, Orders: make([]adminOrderRow, 0, len(list))}
	for _, line := range orderLines(list) {
		resp.Orders = append(resp.Orders, adminOrderRow{
			orderLine:   line,
			Updating:    h.AdminOrders.Updating(line.ID),
			Transitions: admin.AllowedTransitions(line.Status),
		})
	}
	return resp
}

// AdminListOrders возвращает заказы всех пользователей с фильтром ?status=.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := model.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.AdminOrders.ListOrders(r.Context(), filter)
	if err != nil {
		h.logger.Error("admin list orders error", zap.Error(err))
		http.Error(w, "Failed to load orders", backendStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, h.adminOrdersView(h.AdminOrders.Filter(), list))
}

// AdminOrderStats возвращает статистику заказов; 204, если её не удалось получить.
func (h *Handler) AdminOrderStats(w http.ResponseWriter, r *http.Request) {
	stats := h.AdminOrders.Stats(r.Context())
	if stats == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type statusRequest struct {
	Status string `json:"status"`
}

// AdminSetOrderStatus переводит заказ в новый статус.
func (h *Handler) AdminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := idParam(r, "orderId")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// без загруженного списка переход проверить нельзя
	if len(h.AdminOrders.Visible()) == 0 {
		if _, err := h.AdminOrders.ListOrders(r.Context(), h.AdminOrders.Filter()); err != nil {
			http.Error(w, "Failed to load orders", backendStatus(err))
			return
		}
	}

	order, err := h.AdminOrders.SetStatus(r.Context(), orderID, status)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrUnknownOrder):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, admin.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, admin.ErrUpdateInFlight):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, "Failed to update order status", backendStatus(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, orderLines([]model.Order{*order})[0])
}

type productRow struct {
	model.Product
	LowStock bool `json:"lowStock"`
}

// AdminListProducts возвращает каталог с отметкой заканчивающихся товаров.
func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.AdminProducts.List(r.Context())
	if err != nil {
		http.Error(w, "Failed to load products", backendStatus(err))
		return
	}

	rows := make([]productRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, productRow{
			Product:  p,
			LowStock: admin.IsLowStock(p),
		})
	}
	writeJSON(w, http.StatusOK, rows)
}

// AdminCreateProduct создаёт товар.
func (h *Handler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, 0)
}

// AdminUpdateProduct обновляет товар.
func (h *Handler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(r, "productId")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	h.saveProduct(w, r, productID)
}

func (h *Handler) saveProduct(w http.ResponseWriter, r *http.Request, productID int64) {
	form, image, err := readProductForm(r)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if image != nil {
		if c, ok := image.Content.(interface{ Close() error }); ok {
			defer c.Close()
		}
	}

	product, err := h.AdminProducts.Save(r.Context(), productID, form, image)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to save product", backendStatus(err))
		return
	}

	status := http.StatusOK
	if productID == 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, product)
}

// readProductForm читает товар из multipart-формы (часть product и файл image) или из JSON-тела.
func readProductForm(r *http.Request) (backend.ProductForm, *backend.Image, error) {
	var form backend.ProductForm

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		err := json.NewDecoder(r.Body).Decode(&form)
		return form, nil, err
	}

	if err := r.ParseMultipartForm(maxProductUpload); err != nil {
		return form, nil, err
	}
	if err := json.Unmarshal([]byte(r.FormValue("product")), &form); err != nil {
		return form, nil, err
	}

	file, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return form, nil, err
	}
	return form, &backend.Image{Filename: hdr.Filename, Content: file}, nil
}

// AdminDeleteProduct удаляет товар.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := idParam(r, "productId")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.AdminProducts.Delete(r.Context(), productID); err != nil {
		http.Error(w, "Failed to delete product", backendStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
