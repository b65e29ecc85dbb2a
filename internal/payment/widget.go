// Package payment описывает сторонний платёжный виджет как асинхронную операцию.
package payment

import (
	"context"
	"errors"

	"github.com/mmeshcher/storefront/internal/model"
)

var (
	// ErrUnknownSession возвращается, если платёжная сессия не открыта или уже удалена.
	ErrUnknownSession = errors.New("unknown payment session")
	// ErrSessionOpen возвращается при повторном открытии ещё не завершённой сессии.
	ErrSessionOpen = errors.New("payment session already open")
	// ErrInvalidOptions возвращается, если параметров недостаточно для открытия виджета.
	ErrInvalidOptions = errors.New("invalid widget options")
)

// Kind задаёт вид результата работы виджета.
type Kind string

const (
	KindSuccess   Kind = "success"
	KindFailure   Kind = "failure"
	KindDismissed Kind = "dismissed"
)

// Outcome описывает результат работы виджета: успех с подписанным подтверждением, ошибка или закрытие пользователем.
type Outcome struct {
	Kind    Kind
	Payload model.PaymentConfirmation
	Reason  string
}

// Success создаёт успешный результат.
func Success(conf model.PaymentConfirmation) Outcome {
	return Outcome{Kind: KindSuccess, Payload: conf}
}

// Failure создаёт результат с ошибкой.
func Failure(reason string) Outcome {
	return Outcome{Kind: KindFailure, Reason: reason}
}

// Dismissed создаёт результат закрытия виджета без оплаты.
func Dismissed() Outcome {
	return Outcome{Kind: KindDismissed}
}

// Prefill содержит данные покупателя, подставляемые в форму виджета.
type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// Notes содержит дополнительные поля, передаваемые платёжному шлюзу.
type Notes struct {
	Address string `json:"address"`
	City    string `json:"city"`
	ZipCode string `json:"zipCode"`
}

// Theme задаёт оформление виджета.
type Theme struct {
	Color string `json:"color"`
}

// Options задаёт параметры открытия виджета.
type Options struct {
	Key         string  `json:"key"`
	Amount      int64   `json:"amount"`
	Currency    string  `json:"currency"`
	SessionID   string  `json:"order_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Prefill     Prefill `json:"prefill"`
	Notes       Notes   `json:"notes"`
	Theme       Theme   `json:"theme"`
}

// DefaultThemeColor задаёт цвет виджета по умолчанию.
const DefaultThemeColor = "#667eea"

func (o Options) validate() error {
	switch {
	case o.SessionID == "":
		return errors.Join(ErrInvalidOptions, errors.New("session id is empty"))
	case o.Key == "":
		return errors.Join(ErrInvalidOptions, errors.New("widget key is empty"))
	case o.Amount <= 0:
		return errors.Join(ErrInvalidOptions, errors.New("amount must be positive"))
	}
	return nil
}

// Widget открывает платёжный виджет. Канал получает ровно один результат и закрывается.
type Widget interface {
	Open(ctx context.Context, opts Options) (<-chan Outcome, error)
}
