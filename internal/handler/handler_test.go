package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/admin"
	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/cart"
	"github.com/mmeshcher/storefront/internal/checkout"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/notify"
	"github.com/mmeshcher/storefront/internal/orders"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/session"
	"github.com/mmeshcher/storefront/internal/validation"
)

type stubSessions struct {
	mu       sync.Mutex
	user     *model.User
	loading  bool
	loginErr error
	loggedIn *model.User
}

func (s *stubSessions) Login(ctx context.Context, creds backend.Credentials) (*model.User, error) {
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = s.loggedIn
	return s.user, nil
}

func (s *stubSessions) Register(ctx context.Context, reg backend.Registration) (*model.User, error) {
	if err := validation.Struct(reg); err != nil {
		return nil, &session.Error{Reason: err.Error(), Err: err}
	}
	return &model.User{ID: 9, Username: reg.Username, Email: reg.Email, Role: model.RoleUser}, nil
}

func (s *stubSessions) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
}

func (s *stubSessions) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *stubSessions) Loading() bool { return s.loading }

type stubBackend struct {
	mu sync.Mutex

	cart      *model.Cart
	cartItems []model.CartItem
	added     map[int64]int

	orders      map[int64]*model.Order
	placedItems []int64
	cancelled   []int64

	products []model.Product
	stats    *model.OrderStats
	statsErr error

	session  *model.PaymentSession
	verified string
}

func newStubBackend() *stubBackend {
	price := 5.25
	stock := 3
	return &stubBackend{
		cart: &model.Cart{ID: 5, UserID: 1},
		cartItems: []model.CartItem{
			{ID: 11, ProductID: 101, ProductName: "Mug", Price: &price, Quantity: 2},
			{ID: 12, ProductID: 102, Quantity: 1},
		},
		added: make(map[int64]int),
		orders: map[int64]*model.Order{
			7:  {ID: 7, UserID: 1, Status: model.OrderStatusPending, TotalPrice: 15.5},
			42: {ID: 42, UserID: 2, Status: model.OrderStatusShipped, TotalPrice: 20},
		},
		products: []model.Product{
			{ID: 101, Name: "Mug", Price: 5.25, Stock: &stock},
			{ID: 103, Name: "Lamp", Price: 40},
		},
		stats:    &model.OrderStats{TotalOrders: 2, PendingOrders: 1, ShippedOrders: 1},
		session:  &model.PaymentSession{OrderID: "order_abc", Amount: 1550, Currency: "INR"},
		verified: backend.PaymentVerified,
	}
}

func (b *stubBackend) CartByUser(ctx context.Context, userID int64) (*model.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := *b.cart
	return &c, nil
}

func (b *stubBackend) CreateCart(ctx context.Context, userID int64) (*model.Cart, error) {
	return &model.Cart{ID: 6, UserID: userID}, nil
}

func (b *stubBackend) CartItems(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.CartItem(nil), b.cartItems...), nil
}

func (b *stubBackend) AddToCart(ctx context.Context, cartID, productID int64, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.added[productID] += quantity
	return nil
}

func (b *stubBackend) RemoveFromCart(ctx context.Context, cartID, productID int64) error {
	return nil
}

func (b *stubBackend) CreateOrderFromItems(ctx context.Context, cartID int64, itemIDs []int64) (*model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.placedItems = append([]int64(nil), itemIDs...)
	return &model.Order{ID: 7, UserID: 1, Status: model.OrderStatusPending, TotalPrice: 15.5}, nil
}

func (b *stubBackend) Order(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return nil, &backend.APIError{Status: http.StatusNotFound}
	}
	if o.UserID != userID {
		return nil, &backend.APIError{Status: http.StatusForbidden}
	}
	res := *o
	return &res, nil
}

func (b *stubBackend) UserOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var res []model.Order
	for _, id := range []int64{7, 42} {
		if o := b.orders[id]; o.UserID == userID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (b *stubBackend) CancelOrder(ctx context.Context, orderID, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = append(b.cancelled, orderID)
	b.orders[orderID].Status = model.OrderStatusCancelled
	return nil
}

func (b *stubBackend) AdminOrders(ctx context.Context) ([]model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return []model.Order{*b.orders[7], *b.orders[42]}, nil
}

func (b *stubBackend) AdminOrdersByStatus(ctx context.Context, status model.OrderStatus) ([]model.Order, error) {
	list, _ := b.AdminOrders(ctx)
	var res []model.Order
	for _, o := range list {
		if o.Status == status {
			res = append(res, o)
		}
	}
	return res, nil
}

func (b *stubBackend) OrderStats(ctx context.Context) (*model.OrderStats, error) {
	if b.statsErr != nil {
		return nil, b.statsErr
	}
	s := *b.stats
	return &s, nil
}

func (b *stubBackend) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (*model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[orderID].Status = status
	res := *b.orders[orderID]
	return &res, nil
}

func (b *stubBackend) CreatePaymentSession(ctx context.Context, orderID int64, amount float64) (*model.PaymentSession, error) {
	s := *b.session
	s.Amount = model.Cents(amount)
	return &s, nil
}

func (b *stubBackend) VerifyPayment(ctx context.Context, conf model.PaymentConfirmation) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.verified == backend.PaymentVerified {
		b.orders[7].Status = model.OrderStatusPaid
	}
	return b.verified, nil
}

func (b *stubBackend) Products(ctx context.Context) ([]model.Product, error) {
	return b.products, nil
}

func (b *stubBackend) CreateProduct(ctx context.Context, form backend.ProductForm, image *backend.Image) (*model.Product, error) {
	return &model.Product{ID: 200, Name: form.Name, Price: form.Price, Stock: form.Stock}, nil
}

func (b *stubBackend) UpdateProduct(ctx context.Context, productID int64, form backend.ProductForm, image *backend.Image) (*model.Product, error) {
	return &model.Product{ID: productID, Name: form.Name, Price: form.Price, Stock: form.Stock}, nil
}

func (b *stubBackend) DeleteProduct(ctx context.Context, productID int64) error {
	return nil
}

type testEnv struct {
	handler  *Handler
	router   http.Handler
	sessions *stubSessions
	backend  *stubBackend
	notes    *notify.Queue
}

func newTestEnv(t *testing.T, user *model.User) *testEnv {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	sessions := &stubSessions{user: user}
	be := newStubBackend()
	notes := notify.NewQueue()
	hosted := payment.NewHosted("https://widget.example/checkout.js", time.Minute, logger)
	t.Cleanup(func() {
		hosted.Close()
		notes.Close()
	})

	h := NewHandler(Deps{
		Sessions:      sessions,
		Backend:       be,
		Cart:          cart.NewWorkflow(be, notes, logger),
		Orders:        orders.NewHistory(be, notes, logger),
		AdminOrders:   admin.NewOrders(be, notes, logger),
		AdminProducts: admin.NewProducts(be, notes, logger),
		Payments:      hosted,
		Notes:         notes,
		Metrics:       middleware.NewMetrics(),
		Checkout:      checkout.Config{AppName: "Test Store", KeyID: "rzp_test"},
	}, logger, middleware.NewAuthMiddleware(sessions))

	return &testEnv{
		handler:  h,
		router:   h.SetupRouter(),
		sessions: sessions,
		backend:  be,
		notes:    notes,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

var (
	customer = &model.User{ID: 1, Username: "alice", Role: model.RoleUser}
	operator = &model.User{ID: 2, Username: "root", Role: model.RoleAdmin}
)

func TestGuard_AnonymousIsRedirectedToLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, target := range []string{"/cart", "/orders", "/checkout/7", "/admin"} {
		rec := env.do(t, http.MethodGet, target, nil)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("%s: status = %d, want %d", target, rec.Code, http.StatusSeeOther)
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Fatalf("%s: location = %q, want /login", target, loc)
		}
	}
}

func TestGuard_CustomerIsDeniedAdmin(t *testing.T) {
	env := newTestEnv(t, customer)

	rec := env.do(t, http.MethodGet, "/admin/orders", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.HasPrefix(rec.Body.String(), "Access Denied") {
		t.Fatalf("body = %q, want Access Denied", rec.Body.String())
	}
}

func TestGuard_LoadingSession(t *testing.T) {
	env := newTestEnv(t, customer)
	env.sessions.loading = true

	rec := env.do(t, http.MethodGet, "/cart", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestLogin_UnauthorizedOnError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sessions.loginErr = &session.Error{
		Reason: "Invalid username or password",
		Err:    &backend.APIError{Status: http.StatusUnauthorized, Message: "Invalid username or password"},
	}

	rec := env.do(t, http.MethodPost, "/login", backend.Credentials{Username: "alice", Password: "bad"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), "Invalid username or password") {
		t.Fatalf("body = %q, want server reason", rec.Body.String())
	}
}

func TestLogin_MalformedCredentialIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sessions.loginErr = &session.Error{Reason: "Login failed", Err: session.ErrMalformedCredential}

	rec := env.do(t, http.MethodPost, "/login", backend.Credentials{Username: "alice", Password: "secret"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogin_BackendUnreachable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sessions.loginErr = &session.Error{
		Reason: "Login failed",
		Err:    fmt.Errorf("send request: %w", errors.New("connection refused")),
	}

	rec := env.do(t, http.MethodPost, "/login", backend.Credentials{Username: "alice", Password: "secret"})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if !strings.Contains(rec.Body.String(), "Login failed") {
		t.Fatalf("body = %q, want generic message", rec.Body.String())
	}
}

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sessions.loggedIn = customer

	rec := env.do(t, http.MethodPost, "/login", backend.Credentials{Username: "alice", Password: "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decode[sessionResponse](t, rec)
	if resp.User == nil || resp.User.ID != 1 {
		t.Fatalf("user = %+v, want id 1", resp.User)
	}
	if resp.AppName != "Test Store" {
		t.Fatalf("app name = %q", resp.AppName)
	}
}

func TestLogin_BadRequest(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/login", backend.Credentials{Username: "alice"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/register", backend.Registration{Username: "bob", Email: "bob@", Password: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid email: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "Please enter a valid email address") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/register", backend.Registration{Username: "bob", Email: "bob@example.com", Password: "x"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	resp := decode[registerResponse](t, rec)
	if resp.Redirect != "/login" {
		t.Fatalf("redirect = %q, want /login", resp.Redirect)
	}
}

func TestCart_ListAndSelection(t *testing.T) {
	env := newTestEnv(t, customer)

	rec := env.do(t, http.MethodGet, "/cart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decode[cartResponse](t, rec)
	if resp.CartID != 5 {
		t.Fatalf("cart id = %d, want 5", resp.CartID)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(resp.Items))
	}
	if resp.ItemCount != 2 {
		t.Fatalf("item count = %d, want 2 (unavailable line excluded)", resp.ItemCount)
	}
	if resp.Total != "$10.50" {
		t.Fatalf("total = %q, want $10.50", resp.Total)
	}
	if resp.Items[1].Available || resp.Items[1].Selected {
		t.Fatalf("unresolvable line must be unavailable and unselected: %+v", resp.Items[1])
	}

	rec = env.do(t, http.MethodPost, "/cart/selection/11", nil)
	sel := decode[selectionResponse](t, rec)
	if len(sel.SelectedIDs) != 0 || sel.Total != "$0.00" {
		t.Fatalf("after toggle: %+v", sel)
	}

	rec = env.do(t, http.MethodPost, "/cart/selection", nil)
	sel = decode[selectionResponse](t, rec)
	if len(sel.SelectedIDs) != 1 || sel.SelectedIDs[0] != 11 {
		t.Fatalf("after toggle all: %+v", sel)
	}
}

func TestCart_AddItem(t *testing.T) {
	env := newTestEnv(t, customer)

	rec := env.do(t, http.MethodPost, "/cart/items/101", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if env.backend.added[101] != 1 {
		t.Fatalf("added quantity = %d, want 1", env.backend.added[101])
	}

	rec = env.do(t, http.MethodPost, "/cart/items/101", addItemRequest{Quantity: 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero quantity: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	list := env.notes.List()
	if len(list) != 1 || list[0].Message != "Product added to cart!" {
		t.Fatalf("notifications = %+v", list)
	}
}

func TestPlaceOrder(t *testing.T) {
	env := newTestEnv(t, customer)
	env.do(t, http.MethodGet, "/cart", nil)

	rec := env.do(t, http.MethodPost, "/checkout", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if loc := rec.Header().Get("Location"); loc != "/checkout/7" {
		t.Fatalf("location = %q, want /checkout/7", loc)
	}
	if len(env.backend.placedItems) != 1 || env.backend.placedItems[0] != 11 {
		t.Fatalf("placed items = %v, want [11]", env.backend.placedItems)
	}

	rec = env.do(t, http.MethodGet, "/checkout/7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout status = %d, want %d", rec.Code, http.StatusOK)
	}
	view := decode[checkoutResponse](t, rec)
	if view.State != checkout.StateAwaitingPayment || !view.CanPay {
		t.Fatalf("checkout view = %+v", view)
	}
	if view.PayLabel != "Pay $15.50" {
		t.Fatalf("pay label = %q, want Pay $15.50", view.PayLabel)
	}
}

func TestPlaceOrder_EmptySelection(t *testing.T) {
	env := newTestEnv(t, customer)
	env.do(t, http.MethodGet, "/cart", nil)
	env.do(t, http.MethodPost, "/cart/selection", nil)

	rec := env.do(t, http.MethodPost, "/checkout", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if env.backend.placedItems != nil {
		t.Fatalf("backend must not be called with empty selection")
	}

	list := env.notes.List()
	if len(list) != 1 || list[0].Severity != notify.SeverityWarning {
		t.Fatalf("notifications = %+v", list)
	}
}

func TestCheckout_Errors(t *testing.T) {
	env := newTestEnv(t, customer)

	if rec := env.do(t, http.MethodGet, "/checkout", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("no order id: status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/checkout/42", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign order: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if !strings.Contains(rec.Body.String(), "Access denied") {
		t.Fatalf("body = %q", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/checkout/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing order: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

var testBilling = validation.Billing{
	Name:    "Alice",
	Email:   "alice@example.com",
	Phone:   "5551234",
	Address: "1 Main St",
	City:    "Springfield",
	ZipCode: "12345",
}

func TestPay_CallbackSuccess(t *testing.T) {
	env := newTestEnv(t, customer)

	rec := env.do(t, http.MethodPost, "/checkout/7/pay", testBilling)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("pay status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	pay := decode[payResponse](t, rec)
	if pay.SessionID != "order_abc" || pay.Options.Amount != 1550 {
		t.Fatalf("pay response = %+v", pay)
	}
	if pay.Options.Description != "Order #7" || pay.Options.Prefill.Contact != "5551234" {
		t.Fatalf("widget options = %+v", pay.Options)
	}

	rec = env.do(t, http.MethodPost, "/checkout/7/pay", testBilling)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second pay: status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = env.do(t, http.MethodGet, pay.PaymentURL, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payment page status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), payment.ScriptElementID) {
		t.Fatalf("payment page does not reference script element id")
	}

	rec = env.do(t, http.MethodPost, "/payment/order_abc/callback", payment.Callback{
		Kind:      payment.KindSuccess,
		SessionID: "order_abc",
		PaymentID: "pay_1",
		Signature: "sig",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("callback status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	wf := env.handler.checkoutFor(customer.ID, 7)
	require.Eventually(t, func() bool {
		return wf.State() == checkout.StatePaid
	}, time.Second, 10*time.Millisecond)
	if wf.Redirect() != checkout.OrdersPath {
		t.Fatalf("redirect = %q, want %q", wf.Redirect(), checkout.OrdersPath)
	}
}

func TestPay_InvalidBilling(t *testing.T) {
	env := newTestEnv(t, customer)

	billing := testBilling
	billing.Email = "not-an-email"

	rec := env.do(t, http.MethodPost, "/checkout/7/pay", billing)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if !strings.Contains(rec.Body.String(), "Please enter a valid email address") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestPaymentCallback_UnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/payment/nope/callback", payment.Callback{Kind: payment.KindDismissed})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestOrders_ListAndCancel(t *testing.T) {
	env := newTestEnv(t, customer)

	rec := env.do(t, http.MethodGet, "/orders?status=pending", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decode[ordersResponse](t, rec)
	if len(resp.Orders) != 1 || resp.Orders[0].ID != 7 {
		t.Fatalf("orders = %+v", resp.Orders)
	}
	if resp.Summary.TotalOrders != 1 || resp.Summary.PendingOrders != 1 {
		t.Fatalf("summary = %+v", resp.Summary)
	}

	if rec := env.do(t, http.MethodGet, "/orders?status=LOST", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad filter: status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/orders/7/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(env.backend.cancelled) != 1 || env.backend.cancelled[0] != 7 {
		t.Fatalf("cancelled = %v", env.backend.cancelled)
	}

	rec = env.do(t, http.MethodPut, "/orders/7/cancel", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestAdmin_SetOrderStatus(t *testing.T) {
	env := newTestEnv(t, operator)

	rec := env.do(t, http.MethodPut, "/admin/orders/42/status", statusRequest{Status: "PENDING"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("backward transition: status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}

	rec = env.do(t, http.MethodPut, "/admin/orders/42/status", statusRequest{Status: "DELIVERED"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	line := decode[orderLine](t, rec)
	if line.Status != model.OrderStatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", line.Status)
	}

	rec = env.do(t, http.MethodGet, "/admin/orders?status=DELIVERED", nil)
	list := decode[adminOrdersResponse](t, rec)
	if len(list.Orders) != 1 || list.Orders[0].ID != 42 {
		t.Fatalf("orders = %+v", list.Orders)
	}
	if len(list.Orders[0].Transitions) != 0 {
		t.Fatalf("delivered order must have no transitions: %v", list.Orders[0].Transitions)
	}

	found := false
	for _, n := range env.notes.List() {
		if n.Message == "Order #42 status updated to DELIVERED" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing success notification: %+v", env.notes.List())
	}
}

func TestAdmin_OverviewAndStats(t *testing.T) {
	env := newTestEnv(t, operator)

	rec := env.do(t, http.MethodGet, "/admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	ov := decode[admin.Overview](t, rec)
	if ov.TotalProducts != 2 || ov.LowStock != 1 {
		t.Fatalf("overview = %+v", ov)
	}

	env.backend.statsErr = fmt.Errorf("stats down")
	rec = env.do(t, http.MethodGet, "/admin/orders/stats", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("stats failure: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestAdmin_SaveProduct(t *testing.T) {
	env := newTestEnv(t, operator)

	rec := env.do(t, http.MethodPost, "/admin/products", backend.ProductForm{Name: "Chair", Price: 10})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing stock: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	stock := 4
	rec = env.do(t, http.MethodPost, "/admin/products", backend.ProductForm{Name: "Chair", Price: 10, Stock: &stock})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	rec = env.do(t, http.MethodGet, "/admin/products", nil)
	rows := decode[[]productRow](t, rec)
	if len(rows) != 2 || !rows[0].LowStock || rows[1].LowStock {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestNotifications(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.notes.Info("hello")

	rec := env.do(t, http.MethodGet, "/notifications", nil)
	list := decode[[]notify.Notification](t, rec)
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("notifications = %+v", list)
	}

	rec = env.do(t, http.MethodDelete, "/notifications/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if len(env.notes.List()) != 0 {
		t.Fatalf("notification was not removed")
	}
}

func TestLogout_ClosesCheckouts(t *testing.T) {
	env := newTestEnv(t, customer)
	env.do(t, http.MethodGet, "/checkout/7", nil)
	wf := env.handler.checkoutFor(customer.ID, 7)

	rec := env.do(t, http.MethodPost, "/logout", nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if env.sessions.User() != nil {
		t.Fatalf("session was not cleared")
	}
	if wf.CanPay() {
		t.Fatalf("checkout must be closed after logout")
	}
}
