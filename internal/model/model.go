// Package model содержит доменные сущности витрины магазина в том виде, в каком их отдаёт бэкенд.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Role описывает роль пользователя, полученную из учётных данных.
type Role string

const (
	RoleUser  Role = "ROLE_USER"
	RoleAdmin Role = "ROLE_ADMIN"
)

// User представляет аутентифицированного пользователя витрины.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     Role   `json:"role"`
}

// IsAdmin сообщает, обладает ли пользователь административной ролью.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Product описывает товар каталога.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Stock       *int    `json:"stock,omitempty"`
}

// Cart описывает корзину пользователя.
type Cart struct {
	ID     int64      `json:"id"`
	UserID int64      `json:"userId"`
	Items  []CartItem `json:"items"`
}

// CartItem описывает позицию корзины со снимком цены товара.
type CartItem struct {
	ID                 int64    `json:"id"`
	ProductID          int64    `json:"productId"`
	ProductName        string   `json:"productName"`
	ProductDescription string   `json:"productDescription,omitempty"`
	ProductImageURL    string   `json:"productImageUrl,omitempty"`
	Price              *float64 `json:"price"`
	Quantity           int      `json:"quantity"`
}

// Available сообщает, удалось ли сопоставить позицию с существующим товаром.
func (i CartItem) Available() bool {
	return i.ProductName != "" && i.Price != nil
}

// LineTotal возвращает стоимость позиции в копейках (центах); для недоступной позиции возвращает 0.
func (i CartItem) LineTotal() int64 {
	if !i.Available() {
		return 0
	}
	return Cents(*i.Price) * int64(i.Quantity)
}

// OrderItem описывает позицию заказа с ценой, зафиксированной при оформлении.
type OrderItem struct {
	ID        int64    `json:"id"`
	Product   *Product `json:"product,omitempty"`
	ProductID int64    `json:"productId,omitempty"`
	Quantity  int      `json:"quantity"`
	Price     float64  `json:"price"`
}

// Name возвращает название товара позиции или его идентификатор, если товар не передан.
func (i OrderItem) Name() string {
	if i.Product != nil && i.Product.Name != "" {
		return i.Product.Name
	}
	return fmt.Sprintf("Product ID: %d", i.ProductID)
}

// Order описывает заказ пользователя.
type Order struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"userId"`
	OrderDate  Timestamp   `json:"orderDate"`
	Status     OrderStatus `json:"status"`
	TotalPrice float64     `json:"totalPrice"`
	OrderItems []OrderItem `json:"orderItems"`
}

// OrderStats содержит агрегированную статистику заказов для панели администратора.
type OrderStats struct {
	TotalOrders      int64   `json:"totalOrders"`
	PendingOrders    int64   `json:"pendingOrders"`
	PaidOrders       int64   `json:"paidOrders"`
	ProcessingOrders int64   `json:"processingOrders"`
	ShippedOrders    int64   `json:"shippedOrders"`
	DeliveredOrders  int64   `json:"deliveredOrders"`
	CancelledOrders  int64   `json:"cancelledOrders"`
	TotalRevenue     float64 `json:"totalRevenue"`
	MonthlyRevenue   float64 `json:"monthlyRevenue"`
}

// Count возвращает количество заказов в указанном статусе.
func (s *OrderStats) Count(status OrderStatus) int64 {
	if s == nil {
		return 0
	}
	switch status {
	case OrderStatusPending:
		return s.PendingOrders
	case OrderStatusPaid:
		return s.PaidOrders
	case OrderStatusProcessing:
		return s.ProcessingOrders
	case OrderStatusShipped:
		return s.ShippedOrders
	case OrderStatusDelivered:
		return s.DeliveredOrders
	case OrderStatusCancelled:
		return s.CancelledOrders
	}
	return 0
}

// PaymentSession описывает платёжную сессию, созданную бэкендом для виджета.
type PaymentSession struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"razorpayKeyId"`
}

// PaymentConfirmation содержит подписанное подтверждение оплаты, полученное от виджета.
type PaymentConfirmation struct {
	SessionID string `json:"razorpayOrderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// Cents переводит денежную сумму в целое число минимальных единиц.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FormatMoney форматирует сумму в минимальных единицах как "$12.34".
func FormatMoney(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// Timestamp принимает дату как в виде миллисекунд эпохи, так и в виде строки.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05.000+0000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON реализует json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("parse timestamp %s: %w", data, err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp format %q", s)
}

// MarshalJSON реализует json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}
