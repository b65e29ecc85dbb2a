package backend

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mmeshcher/storefront/internal/model"
)

// PaymentVerified содержит единственный ответ бэкенда, означающий успешную проверку подписи.
const PaymentVerified = "Payment verified successfully!"

// CreatePaymentSession создаёт платёжную сессию для заказа на указанную сумму.
func (c *Client) CreatePaymentSession(ctx context.Context, orderID int64, amount float64) (*model.PaymentSession, error) {
	var s model.PaymentSession
	path := fmt.Sprintf("/api/payment/create-order/%d/%s", orderID, strconv.FormatFloat(amount, 'f', -1, 64))
	if err := c.call(ctx, http.MethodPost, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// VerifyPayment отправляет подтверждение оплаты на проверку и возвращает ответ сервера как есть.
func (c *Client) VerifyPayment(ctx context.Context, conf model.PaymentConfirmation) (string, error) {
	return c.callText(ctx, http.MethodPost, "/api/payment/verify", conf)
}
