package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/validation"
)

// State задаёт стадию оплаты заказа.
type State string

const (
	StateSelecting       State = "SELECTING"
	StateOrderCreated    State = "ORDER_CREATED"
	StateAwaitingPayment State = "AWAITING_PAYMENT"
	StateWidgetOpen      State = "WIDGET_OPEN"
	StateVerifying       State = "VERIFYING"
	StatePaid            State = "PAID"
	StateFailed          State = "FAILED"
)

// OrdersPath указывает страницу, на которую отправляется пользователь после оплаты.
const OrdersPath = "/orders"

var (
	// ErrNotPayable возвращается, если заказ не в статусе PENDING или оплата уже идёт.
	ErrNotPayable = errors.New("order cannot be paid")
	// ErrOrderNotLoaded возвращается до успешной загрузки заказа.
	ErrOrderNotLoaded = errors.New("order is not loaded")
	// ErrMissingWidgetKey возвращается, если ключ виджета не задан ни в конфигурации, ни бэкендом.
	ErrMissingWidgetKey = errors.New("payment widget key is not configured")
	// ErrClosed возвращается после закрытия сценария.
	ErrClosed = errors.New("checkout closed")
	// ErrPaymentFailed означает, что виджет сообщил об отказе в оплате.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrVerificationFailed означает, что бэкенд не подтвердил подпись платежа.
	ErrVerificationFailed = errors.New("payment verification failed")
)

// VerificationError сохраняет идентификатор платежа, который не прошёл проверку.
type VerificationError struct {
	PaymentID string
	Err       error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s for payment %s: %v", ErrVerificationFailed, e.PaymentID, e.Err)
	}
	return fmt.Sprintf("%s for payment %s", ErrVerificationFailed, e.PaymentID)
}

func (e *VerificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrVerificationFailed}
	}
	return []error{ErrVerificationFailed, e.Err}
}

// API описывает методы бэкенда, используемые при оплате.
type API interface {
	Order(ctx context.Context, orderID, userID int64) (*model.Order, error)
	CreatePaymentSession(ctx context.Context, orderID int64, amount float64) (*model.PaymentSession, error)
	VerifyPayment(ctx context.Context, conf model.PaymentConfirmation) (string, error)
}

// Notifier показывает пользователю результат действия.
type Notifier interface {
	Success(message string) string
	Error(message string) string
	Warning(message string) string
	Info(message string) string
}

// Config задаёт параметры виджета.
type Config struct {
	AppName    string
	KeyID      string
	ThemeColor string
}

// Workflow ведёт оплату одного заказа.
type Workflow struct {
	api    API
	widget payment.Widget
	notes  Notifier
	logger *zap.Logger
	cfg    Config

	orderID int64
	userID  int64

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	order     *model.Order
	loadErr   string
	sessionID string
	redirect  string
	failure   error
	closed    bool
}

// NewWorkflow создаёт сценарий оплаты заказа orderID, уже оформленного пользователем userID.
func NewWorkflow(api API, widget payment.Widget, notes Notifier, logger *zap.Logger, cfg Config, userID, orderID int64) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AppName == "" {
		cfg.AppName = "Your Ecommerce Store"
	}
	if cfg.ThemeColor == "" {
		cfg.ThemeColor = payment.DefaultThemeColor
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Workflow{
		api:     api,
		widget:  widget,
		notes:   notes,
		logger:  logger.With(zap.Int64("order_id", orderID)),
		cfg:     cfg,
		orderID: orderID,
		userID:  userID,
		ctx:     ctx,
		cancel:  cancel,
		state:   StateOrderCreated,
	}
}

// OrderID возвращает идентификатор заказа.
func (w *Workflow) OrderID() int64 { return w.orderID }

// UserID возвращает владельца заказа.
func (w *Workflow) UserID() int64 { return w.userID }

// Load получает заказ. Ошибки доступа и отсутствия заказа различаются в тексте ошибки.
func (w *Workflow) Load(ctx context.Context) (*model.Order, error) {
	order, err := w.api.Order(ctx, w.orderID, w.userID)
	if err != nil {
		msg := loadErrorMessage(err)
		w.logger.Warn("failed to load order", zap.Error(err))

		w.mu.Lock()
		w.loadErr = msg
		w.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", msg, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	w.order = order
	w.loadErr = ""
	if w.state == StateOrderCreated {
		w.state = StateAwaitingPayment
	}
	o := *order
	return &o, nil
}

func loadErrorMessage(err error) string {
	switch {
	case backend.IsForbidden(err):
		return "Access denied: You don't have permission to view this order"
	case backend.IsNotFound(err):
		return "Order not found"
	}
	return "Failed to load order details: " + backend.Message(err, err.Error())
}

// LoadError возвращает сообщение последней неудачной загрузки.
func (w *Workflow) LoadError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadErr
}

// Order возвращает копию загруженного заказа.
func (w *Workflow) Order() *model.Order {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.order == nil {
		return nil
	}
	o := *w.order
	return &o
}

// State возвращает текущую стадию.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SessionID возвращает идентификатор текущей платёжной сессии.
func (w *Workflow) SessionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sessionID
}

// Redirect возвращает адрес перехода после успешной оплаты.
func (w *Workflow) Redirect() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.redirect
}

// Failure возвращает причину последней неудачной оплаты: ErrPaymentFailed или *VerificationError.
func (w *Workflow) Failure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failure
}

// CanPay сообщает, доступна ли кнопка оплаты. Зависит от текущего статуса заказа.
func (w *Workflow) CanPay() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canPayLocked()
}

func (w *Workflow) canPayLocked() bool {
	if w.closed || w.order == nil || w.order.Status != model.OrderStatusPending {
		return false
	}
	return w.state == StateAwaitingPayment || w.state == StateFailed
}

// PayLabel возвращает подпись кнопки оплаты.
func (w *Workflow) PayLabel() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.order == nil:
		return "Loading..."
	case w.state == StateWidgetOpen || w.state == StateVerifying:
		return "Processing..."
	case w.order.Status != model.OrderStatusPending:
		return "Order " + w.order.Status.String()
	}
	return "Pay " + model.FormatMoney(model.Cents(w.order.TotalPrice))
}

// BeginPayment проверяет платёжные данные, запрашивает платёжную сессию и открывает виджет.
func (w *Workflow) BeginPayment(ctx context.Context, billing validation.Billing) (payment.Options, <-chan payment.Outcome, error) {
	if err := validation.Struct(billing); err != nil {
		w.note(noteWarning, err.Error())
		return payment.Options{}, nil, err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return payment.Options{}, nil, ErrClosed
	}
	if w.order == nil {
		w.mu.Unlock()
		return payment.Options{}, nil, ErrOrderNotLoaded
	}
	if w.order.Status != model.OrderStatusPending {
		status := w.order.Status
		w.mu.Unlock()
		w.note(noteWarning, "This order cannot be paid. Status: "+status.String())
		return payment.Options{}, nil, fmt.Errorf("%w: status %s", ErrNotPayable, status)
	}
	if !w.canPayLocked() {
		state := w.state
		w.mu.Unlock()
		return payment.Options{}, nil, fmt.Errorf("%w: payment is %s", ErrNotPayable, state)
	}
	// WidgetOpen выставляется заранее: повторное нажатие не создаст вторую сессию
	w.state = StateWidgetOpen
	w.failure = nil
	total := w.order.TotalPrice
	w.mu.Unlock()

	opts, ch, err := w.openWidget(ctx, billing, total)
	if err != nil {
		w.logger.Error("failed to initiate payment", zap.Error(err))
		w.setState(StateFailed)
		w.note(noteError, "Failed to initiate payment. Please try again.")
		return payment.Options{}, nil, err
	}

	w.mu.Lock()
	w.sessionID = opts.SessionID
	w.mu.Unlock()

	w.logger.Info("payment widget opened", zap.String("session_id", opts.SessionID))
	return opts, ch, nil
}

func (w *Workflow) openWidget(ctx context.Context, billing validation.Billing, total float64) (payment.Options, <-chan payment.Outcome, error) {
	sess, err := w.api.CreatePaymentSession(ctx, w.orderID, total)
	if err != nil {
		return payment.Options{}, nil, fmt.Errorf("create payment session: %w", err)
	}

	key := w.cfg.KeyID
	if key == "" {
		key = sess.KeyID
	}
	if key == "" {
		return payment.Options{}, nil, ErrMissingWidgetKey
	}

	opts := payment.Options{
		Key:         key,
		Amount:      sess.Amount,
		Currency:    sess.Currency,
		SessionID:   sess.OrderID,
		Name:        w.cfg.AppName,
		Description: fmt.Sprintf("Order #%d", w.orderID),
		Prefill: payment.Prefill{
			Name:    billing.Name,
			Email:   billing.Email,
			Contact: billing.Phone,
		},
		Notes: payment.Notes{
			Address: billing.Address,
			City:    billing.City,
			ZipCode: billing.ZipCode,
		},
		Theme: payment.Theme{Color: w.cfg.ThemeColor},
	}

	ch, err := w.widget.Open(w.ctx, opts)
	if err != nil {
		return payment.Options{}, nil, fmt.Errorf("open widget: %w", err)
	}
	return opts, ch, nil
}

// Start открывает виджет и обрабатывает его результат в фоне, пока сценарий не закрыт.
func (w *Workflow) Start(ctx context.Context, billing validation.Billing) (payment.Options, error) {
	opts, ch, err := w.BeginPayment(ctx, billing)
	if err != nil {
		return payment.Options{}, err
	}

	go func() {
		select {
		case out, ok := <-ch:
			if !ok {
				out = payment.Dismissed()
			}
			w.Settle(w.ctx, out)
		case <-w.ctx.Done():
		}
	}()
	return opts, nil
}

// Settle применяет результат виджета. После Close результаты отбрасываются.
func (w *Workflow) Settle(ctx context.Context, out payment.Outcome) State {
	w.mu.Lock()
	if w.closed || w.state != StateWidgetOpen {
		state := w.state
		w.mu.Unlock()
		w.logger.Info("discarding payment outcome", zap.String("outcome", string(out.Kind)), zap.String("state", string(state)))
		return state
	}

	switch out.Kind {
	case payment.KindSuccess:
		w.state = StateVerifying
		w.mu.Unlock()
		return w.verify(ctx, out.Payload)

	case payment.KindFailure:
		reason := out.Reason
		if reason == "" {
			reason = "Unknown error"
		}
		w.state = StateFailed
		w.failure = fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
		w.mu.Unlock()

		w.logger.Warn("payment failed", zap.String("reason", reason))
		w.note(noteError, "Payment failed: "+reason)
		return StateFailed

	default:
		w.state = StateAwaitingPayment
		w.mu.Unlock()
		w.logger.Info("payment widget dismissed")
		w.note(noteInfo, "Payment cancelled")
		return StateAwaitingPayment
	}
}

func (w *Workflow) verify(ctx context.Context, conf model.PaymentConfirmation) State {
	result, err := w.api.VerifyPayment(ctx, conf)
	if err != nil || result != backend.PaymentVerified {
		w.logger.Error("payment verification failed",
			zap.String("payment_id", conf.PaymentID),
			zap.String("response", result),
			zap.Error(err),
		)
		w.mu.Lock()
		if w.closed {
			state := w.state
			w.mu.Unlock()
			return state
		}
		w.state = StateFailed
		w.failure = &VerificationError{PaymentID: conf.PaymentID, Err: err}
		w.mu.Unlock()

		w.note(noteError, "Payment verification failed. Please contact support with payment ID: "+conf.PaymentID)
		return StateFailed
	}

	order, err := w.api.Order(ctx, w.orderID, w.userID)
	if err != nil {
		w.logger.Warn("failed to reload paid order", zap.Error(err))
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return StatePaid
	}
	w.state = StatePaid
	w.redirect = OrdersPath
	if order != nil {
		w.order = order
	}
	w.mu.Unlock()

	w.logger.Info("payment verified", zap.String("payment_id", conf.PaymentID))
	w.note(noteSuccess, "Payment successful! Redirecting to orders...")
	return StatePaid
}

func (w *Workflow) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.state = s
	}
}

type noteKind int

const (
	noteSuccess noteKind = iota
	noteError
	noteWarning
	noteInfo
)

func (w *Workflow) note(kind noteKind, message string) {
	if w.notes == nil {
		return
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	switch kind {
	case noteSuccess:
		w.notes.Success(message)
	case noteError:
		w.notes.Error(message)
	case noteWarning:
		w.notes.Warning(message)
	default:
		w.notes.Info(message)
	}
}

// Close завершает сценарий; открытый виджет закрывается, поздние результаты отбрасываются.
func (w *Workflow) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
}
