// Package handler содержит HTTP-обработчики витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/admin"
	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/checkout"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/notify"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/session"
	"github.com/mmeshcher/storefront/internal/validation"
)

// Sessions управляет сессией покупателя.
type Sessions interface {
	Login(ctx context.Context, creds backend.Credentials) (*model.User, error)
	Register(ctx context.Context, reg backend.Registration) (*model.User, error)
	Logout(ctx context.Context)
	User() *model.User
	Loading() bool
}

// Backend перечисляет методы бэкенда, которые обработчики вызывают напрямую.
type Backend interface {
	checkout.API
	checkout.OrderCreator
	admin.ProductsAPI
	admin.StatsAPI
}

var _ Backend = (*backend.Client)(nil)

// Cart описывает сценарий корзины.
type Cart interface {
	EnsureCart(ctx context.Context, userID int64) (int64, error)
	CartID() (int64, bool)
	AddItem(ctx context.Context, productID int64, quantity int) error
	RemoveItem(ctx context.Context, productID int64) error
	Items(ctx context.Context) ([]model.CartItem, error)
	ItemCount() int
}

// OrderHistory хранит историю заказов покупателя.
type OrderHistory interface {
	List(ctx context.Context, userID int64, filter model.StatusFilter) ([]model.Order, error)
	Cached(filter model.StatusFilter) []model.Order
	Cancel(ctx context.Context, userID, orderID int64) error
}

// AdminOrders управляет заказами в панели администратора.
type AdminOrders interface {
	ListOrders(ctx context.Context, filter model.StatusFilter) ([]model.Order, error)
	Visible() []model.Order
	Filter() model.StatusFilter
	Stats(ctx context.Context) *model.OrderStats
	Updating(orderID int64) bool
	SetStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error)
}

// AdminProducts управляет каталогом.
type AdminProducts interface {
	List(ctx context.Context) ([]model.Product, error)
	Save(ctx context.Context, productID int64, form backend.ProductForm, image *backend.Image) (*model.Product, error)
	Delete(ctx context.Context, productID int64) error
}

// PaymentPages объединяет виджет оплаты со страницей и приёмом результатов.
type PaymentPages interface {
	payment.Widget
	RenderPage(w io.Writer, sessionID, callbackURL, returnURL string) error
	Resolve(sessionID string, outcome payment.Outcome) error
}

// Notifications хранит очередь уведомлений.
type Notifications interface {
	checkout.Notifier
	List() []notify.Notification
	Remove(id string)
}

// Deps собирает зависимости обработчика.
type Deps struct {
	Sessions      Sessions
	Backend       Backend
	Cart          Cart
	Selection     *checkout.Selection
	Orders        OrderHistory
	AdminOrders   AdminOrders
	AdminProducts AdminProducts
	Payments      PaymentPages
	Notes         Notifications
	Metrics       *middleware.Metrics
	Checkout      checkout.Config
}

// Handler реализует HTTP-обработчики витрины.
type Handler struct {
	Deps
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware

	mu        sync.Mutex
	checkouts map[int64]*checkout.Workflow
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(deps Deps, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	if deps.Selection == nil {
		deps.Selection = checkout.NewSelection()
	}
	return &Handler{
		Deps:           deps,
		logger:         logger,
		authMiddleware: auth,
		checkouts:      make(map[int64]*checkout.Workflow),
	}
}

type sessionResponse struct {
	AppName   string      `json:"appName"`
	Loading   bool        `json:"loading"`
	User      *model.User `json:"user,omitempty"`
	CartCount int         `json:"cartCount"`
}

func (h *Handler) session() sessionResponse {
	resp := sessionResponse{
		AppName: h.Checkout.AppName,
		Loading: h.Sessions.Loading(),
		User:    h.Sessions.User(),
	}
	if resp.User != nil {
		resp.CartCount = h.Cart.ItemCount()
	}
	return resp
}

// Home возвращает состояние сессии и счётчик корзины для шапки.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session())
}

// Login обрабатывает вход пользователя.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req backend.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if _, err := h.Sessions.Login(r.Context(), req); err != nil {
		if !backend.IsAPIError(err) && !errors.Is(err, session.ErrMalformedCredential) {
			h.logger.Error("login user error", zap.Error(err))
			http.Error(w, "Login failed", http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, h.session())
}

type registerResponse struct {
	User     *model.User `json:"user"`
	Message  string      `json:"message"`
	Redirect string      `json:"redirect"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req backend.Registration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	user, err := h.Sessions.Register(r.Context(), req)
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !backend.IsAPIError(err) {
			h.logger.Error("register user error", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	const msg = "Account created successfully! Please login."
	h.Notes.Success(msg)
	writeJSON(w, http.StatusCreated, registerResponse{User: user, Message: msg, Redirect: middleware.LoginPath})
}

// Logout завершает сессию и закрывает открытые оплаты.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.closeCheckouts()
	h.Sessions.Logout(r.Context())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Products возвращает каталог.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.Backend.Products(r.Context())
	if err != nil {
		h.logger.Error("get products error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// Notifications возвращает активные уведомления.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Notes.List())
}

// DismissNotification убирает уведомление.
func (h *Handler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.Notes.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// backendStatus переводит ошибку бэкенда в код ответа: 4xx передаются как есть, остальное становится 502.
func backendStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
