package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/checkout"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/validation"
)

// checkoutFor возвращает сценарий оплаты заказа, создавая его при первом обращении.
// Сценарий другого пользователя закрывается и заменяется.
func (h *Handler) checkoutFor(userID, orderID int64) *checkout.Workflow {
	h.mu.Lock()
	defer h.mu.Unlock()

	if wf, ok := h.checkouts[orderID]; ok {
		if wf.UserID() == userID {
			return wf
		}
		wf.Close()
	}

	wf := checkout.NewWorkflow(h.Backend, h.Payments, h.Notes, h.logger, h.Checkout, userID, orderID)
	h.checkouts[orderID] = wf
	return wf
}

func (h *Handler) checkoutBySession(sessionID string) (*checkout.Workflow, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, wf := range h.checkouts {
		if wf.SessionID() == sessionID {
			return wf, true
		}
	}
	return nil, false
}

func (h *Handler) closeCheckouts() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, wf := range h.checkouts {
		wf.Close()
		delete(h.checkouts, id)
	}
}

type checkoutResponse struct {
	Order     *model.Order   `json:"order"`
	State     checkout.State `json:"state"`
	CanPay    bool           `json:"canPay"`
	PayLabel  string         `json:"payLabel"`
	SessionID string         `json:"sessionId,omitempty"`
	Redirect  string         `json:"redirect,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func checkoutView(wf *checkout.Workflow) checkoutResponse {
	resp := checkoutResponse{
		Order:     wf.Order(),
		State:     wf.State(),
		CanPay:    wf.CanPay(),
		PayLabel:  wf.PayLabel(),
		SessionID: wf.SessionID(),
		Redirect:  wf.Redirect(),
	}
	if err := wf.Failure(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

// CheckoutWithoutOrder отвечает на переход к оплате без номера заказа.
func (h *Handler) CheckoutWithoutOrder(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "No order ID provided", http.StatusBadRequest)
}

// GetCheckout загружает заказ и возвращает состояние оплаты.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := idParam(r, "orderId")
	if !ok {
		http.Error(w, "No order ID provided", http.StatusBadRequest)
		return
	}

	wf := h.checkoutFor(userID, orderID)
	if _, err := wf.Load(r.Context()); err != nil {
		if errors.Is(err, checkout.ErrClosed) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		http.Error(w, wf.LoadError(), backendStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, checkoutView(wf))
}

type payResponse struct {
	SessionID  string          `json:"sessionId"`
	PaymentURL string          `json:"paymentUrl"`
	Options    payment.Options `json:"options"`
}

// Pay проверяет платёжные данные и открывает виджет оплаты.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, ok := idParam(r, "orderId")
	if !ok {
		http.Error(w, "No order ID provided", http.StatusBadRequest)
		return
	}

	var billing validation.Billing
	if err := json.NewDecoder(r.Body).Decode(&billing); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wf := h.checkoutFor(userID, orderID)
	if wf.Order() == nil {
		if _, err := wf.Load(r.Context()); err != nil {
			http.Error(w, wf.LoadError(), backendStatus(err))
			return
		}
	}

	opts, err := wf.Start(r.Context(), billing)
	if err != nil {
		var verrs validation.Errors
		switch {
		case errors.As(err, &verrs):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, checkout.ErrNotPayable), errors.Is(err, checkout.ErrOrderNotLoaded),
			errors.Is(err, checkout.ErrClosed), errors.Is(err, payment.ErrSessionOpen):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, checkout.ErrMissingWidgetKey):
			h.logger.Error("payment widget key missing", zap.Int64("orderID", orderID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		default:
			http.Error(w, "Failed to initiate payment", backendStatus(err))
		}
		return
	}

	writeJSON(w, http.StatusAccepted, payResponse{
		SessionID:  opts.SessionID,
		PaymentURL: "/payment/" + opts.SessionID,
		Options:    opts,
	})
}

// PaymentPage отдаёт страницу виджета для открытой платёжной сессии.
func (h *Handler) PaymentPage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	returnURL := checkout.OrdersPath
	if wf, ok := h.checkoutBySession(sessionID); ok {
		returnURL = fmt.Sprintf("/checkout/%d", wf.OrderID())
	}

	var buf bytes.Buffer
	if err := h.Payments.RenderPage(&buf, sessionID, "/payment/"+sessionID+"/callback", returnURL); err != nil {
		if errors.Is(err, payment.ErrUnknownSession) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("render payment page error", zap.Error(err), zap.String("sessionID", sessionID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// PaymentCallback принимает результат виджета от страницы оплаты.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	var cb payment.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	outcome, err := cb.Outcome(sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Payments.Resolve(sessionID, outcome); err != nil {
		if errors.Is(err, payment.ErrUnknownSession) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("resolve payment error", zap.Error(err), zap.String("sessionID", sessionID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
