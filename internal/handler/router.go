package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/storefront/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	r.Get("/", h.Home)
	r.Get("/login", h.Home)
	r.Post("/login", h.Login)
	r.Get("/register", h.Home)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)
	r.Get("/products", h.Products)

	r.Get("/notifications", h.Notifications)
	r.Delete("/notifications/{id}", h.DismissNotification)

	r.Post("/payment/{sessionId}/callback", h.PaymentCallback)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items/{productId}", h.AddCartItem)
		r.Delete("/cart/items/{productId}", h.RemoveCartItem)
		r.Post("/cart/selection", h.ToggleAllCartItems)
		r.Post("/cart/selection/{itemId}", h.ToggleCartItem)

		r.Get("/checkout", h.CheckoutWithoutOrder)
		r.Post("/checkout", h.PlaceOrder)
		r.Get("/checkout/{orderId}", h.GetCheckout)
		r.Post("/checkout/{orderId}/pay", h.Pay)
		r.Get("/payment/{sessionId}", h.PaymentPage)

		r.Get("/orders", h.GetOrders)
		r.Put("/orders/{orderId}/cancel", h.CancelOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.AdminOnly)

			r.Get("/", h.AdminOverview)
			r.Get("/orders", h.AdminListOrders)
			r.Get("/orders/stats", h.AdminOrderStats)
			r.Put("/orders/{orderId}/status", h.AdminSetOrderStatus)

			r.Get("/products", h.AdminListProducts)
			r.Post("/products", h.AdminCreateProduct)
			r.Put("/products/{productId}", h.AdminUpdateProduct)
			r.Delete("/products/{productId}", h.AdminDeleteProduct)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
