package payment

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
)

// DefaultScriptURL указывает адрес скрипта платёжного виджета.
const DefaultScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

// ScriptElementID задаёт идентификатор тега скрипта; по нему загрузчик определяет, что скрипт уже подключён.
const ScriptElementID = "razorpay-script"

// SessionExpired содержит причину ошибки для сессии, которую не завершили вовремя.
const SessionExpired = "payment session expired"

type pending struct {
	opts   Options
	ch     chan Outcome
	timer  *time.Timer
	done   bool
	cancel context.CancelFunc
}

// Hosted открывает виджет на странице, которую отдаёт сама витрина; браузер
// сообщает результат через Resolve.
type Hosted struct {
	scriptURL string
	ttl       time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*pending
}

// NewHosted создаёт виджет. ttl ограничивает время жизни незавершённой сессии.
func NewHosted(scriptURL string, ttl time.Duration, logger *zap.Logger) *Hosted {
	if scriptURL == "" {
		scriptURL = DefaultScriptURL
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hosted{
		scriptURL: scriptURL,
		ttl:       ttl,
		logger:    logger,
		sessions:  make(map[string]*pending),
	}
}

// Open регистрирует сессию; страницу виджета можно получить сразу после возврата.
// Отмена ctx закрывает виджет с результатом Dismissed.
func (h *Hosted) Open(ctx context.Context, opts Options) (<-chan Outcome, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Theme.Color == "" {
		opts.Theme.Color = DefaultThemeColor
	}

	h.mu.Lock()
	if prev, ok := h.sessions[opts.SessionID]; ok {
		if !prev.done {
			h.mu.Unlock()
			return nil, ErrSessionOpen
		}
		prev.timer.Stop()
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p := &pending{opts: opts, ch: make(chan Outcome, 1), cancel: cancel}
	id := opts.SessionID
	p.timer = time.AfterFunc(h.ttl, func() {
		if h.resolveIf(id, p, Failure(SessionExpired)) {
			h.logger.Info("payment session expired", zap.String("session_id", id))
		}
		h.forget(id, p)
	})
	h.sessions[id] = p
	h.mu.Unlock()

	go func() {
		<-watchCtx.Done()
		if ctx.Err() != nil {
			h.resolveIf(id, p, Dismissed())
		}
	}()

	h.logger.Info("payment widget opened",
		zap.String("session_id", id),
		zap.Int64("amount", opts.Amount),
		zap.String("currency", opts.Currency),
	)
	return p.ch, nil
}

// Resolve передаёт результат виджета ожидающей стороне. Повторный вызов для
// завершённой сессии ничего не делает.
func (h *Hosted) Resolve(sessionID string, outcome Outcome) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.sessions[sessionID]
	if !ok {
		return ErrUnknownSession
	}
	h.settleLocked(sessionID, p, outcome)
	return nil
}

// resolveIf завершает сессию, только если под id всё ещё зарегистрирована p.
func (h *Hosted) resolveIf(id string, p *pending, outcome Outcome) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.sessions[id]; !ok || cur != p {
		return false
	}
	return h.settleLocked(id, p, outcome)
}

func (h *Hosted) settleLocked(sessionID string, p *pending, outcome Outcome) bool {
	if p.done {
		return false
	}

	p.done = true
	p.ch <- outcome
	close(p.ch)
	p.cancel()

	// завершённая сессия хранится до истечения ttl, чтобы повторные колбэки были безвредны
	p.timer.Reset(h.ttl)

	h.logger.Info("payment widget resolved",
		zap.String("session_id", sessionID),
		zap.String("outcome", string(outcome.Kind)),
	)
	return true
}

func (h *Hosted) forget(id string, p *pending) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.sessions[id]; ok && cur == p && cur.done {
		delete(h.sessions, id)
	}
}

// Session возвращает параметры открытой сессии.
func (h *Hosted) Session(sessionID string) (Options, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, ok := h.sessions[sessionID]
	if !ok || p.done {
		return Options{}, false
	}
	return p.opts, true
}

// Close завершает все открытые сессии результатом Dismissed.
func (h *Hosted) Close() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		_ = h.Resolve(id, Dismissed())
	}

	h.mu.Lock()
	for id, p := range h.sessions {
		p.timer.Stop()
		delete(h.sessions, id)
	}
	h.mu.Unlock()
}

type pageData struct {
	ScriptURL   string
	ScriptID    string
	CallbackURL string
	ReturnURL   string
	Options     Options
	Amount      string
}

var pageTemplate = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Options.Name}} - {{.Options.Description}}</title></head>
<body>
<p>{{.Options.Description}}: {{.Amount}}</p>
<p id="status">Opening payment window...</p>
<script>
(function () {
  var options = {{.Options}};
  var callbackURL = {{.CallbackURL}};
  var returnURL = {{.ReturnURL}};

  function report(body) {
    fetch(callbackURL, {
      method: "POST",
      headers: {"Content-Type": "application/json"},
      body: JSON.stringify(body)
    }).finally(function () { window.location.assign(returnURL); });
  }

  options.handler = function (resp) {
    report({
      kind: "success",
      razorpayOrderId: resp.razorpay_order_id,
      paymentId: resp.razorpay_payment_id,
      signature: resp.razorpay_signature
    });
  };
  options.modal = {ondismiss: function () { report({kind: "dismissed"}); }};

  function open() {
    var widget = new window.Razorpay(options);
    widget.on("payment.failed", function (resp) {
      report({kind: "failure", reason: resp && resp.error ? resp.error.description : ""});
    });
    widget.open();
  }

  if (window.Razorpay) {
    open();
    return;
  }
  var script = document.getElementById({{.ScriptID}});
  if (!script) {
    script = document.createElement("script");
    script.id = {{.ScriptID}};
    script.src = {{.ScriptURL}};
    document.body.appendChild(script);
  }
  script.addEventListener("load", open);
  script.addEventListener("error", function () {
    report({kind: "failure", reason: "Failed to load payment widget"});
  });
})();
</script>
</body>
</html>
`))

// RenderPage выводит страницу, которая загружает скрипт виджета один раз и
// отправляет результат на callbackURL.
func (h *Hosted) RenderPage(w io.Writer, sessionID, callbackURL, returnURL string) error {
	opts, ok := h.Session(sessionID)
	if !ok {
		return ErrUnknownSession
	}

	data := pageData{
		ScriptURL:   h.scriptURL,
		ScriptID:    ScriptElementID,
		CallbackURL: callbackURL,
		ReturnURL:   returnURL,
		Options:     opts,
		Amount:      fmt.Sprintf("%d.%02d %s", opts.Amount/100, opts.Amount%100, opts.Currency),
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render widget page: %w", err)
	}
	return nil
}

// Callback описывает тело запроса, которым страница виджета сообщает результат.
type Callback struct {
	Kind      Kind   `json:"kind"`
	SessionID string `json:"razorpayOrderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
	Reason    string `json:"reason"`
}

// Outcome преобразует тело колбэка в результат виджета.
func (c Callback) Outcome(sessionID string) (Outcome, error) {
	switch c.Kind {
	case KindSuccess:
		if c.PaymentID == "" || c.Signature == "" {
			return Outcome{}, fmt.Errorf("success callback without payment id or signature")
		}
		orderID := c.SessionID
		if orderID == "" {
			orderID = sessionID
		}
		return Success(model.PaymentConfirmation{
			SessionID: orderID,
			PaymentID: c.PaymentID,
			Signature: c.Signature,
		}), nil
	case KindFailure:
		return Failure(c.Reason), nil
	case KindDismissed:
		return Dismissed(), nil
	}
	return Outcome{}, fmt.Errorf("unknown callback kind %q", c.Kind)
}
