package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{name: "pending to paid", from: OrderStatusPending, to: OrderStatusPaid, want: true},
		{name: "pending to cancelled", from: OrderStatusPending, to: OrderStatusCancelled, want: true},
		{name: "paid to shipped skips processing", from: OrderStatusPaid, to: OrderStatusShipped, want: true},
		{name: "paid to cancelled", from: OrderStatusPaid, to: OrderStatusCancelled, want: false},
		{name: "shipped back to paid", from: OrderStatusShipped, to: OrderStatusPaid, want: false},
		{name: "cancelled to pending", from: OrderStatusCancelled, to: OrderStatusPending, want: false},
		{name: "delivered is terminal", from: OrderStatusDelivered, to: OrderStatusCancelled, want: false},
		{name: "same status", from: OrderStatusPaid, to: OrderStatusPaid, want: false},
		{name: "unknown target", from: OrderStatusPending, to: OrderStatus("LOST"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_Transitions(t *testing.T) {
	assert.Empty(t, OrderStatusCancelled.Transitions())
	assert.Empty(t, OrderStatusDelivered.Transitions())
	assert.Equal(t,
		[]OrderStatus{OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
		OrderStatusPending.Transitions(),
	)
	assert.Equal(t, []OrderStatus{OrderStatusDelivered}, OrderStatusShipped.Transitions())
}

func TestParseOrderStatus(t *testing.T) {
	s, err := ParseOrderStatus(" shipped ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, s)

	_, err = ParseOrderStatus("ALL")
	assert.Error(t, err)
}

func TestCartItem_LineTotal(t *testing.T) {
	price := 5.5
	item := CartItem{ProductName: "Mug", Price: &price, Quantity: 3}
	assert.True(t, item.Available())
	assert.Equal(t, int64(1650), item.LineTotal())

	missing := CartItem{Quantity: 2}
	assert.False(t, missing.Available())
	assert.Zero(t, missing.LineTotal())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$15.50", FormatMoney(Cents(10.0)+Cents(5.5)))
	assert.Equal(t, "$0.07", FormatMoney(7))
	assert.Equal(t, "-$1.00", FormatMoney(-100))
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var o struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
		C Timestamp `json:"c"`
	}
	err := json.Unmarshal([]byte(`{"a":1700000000000,"b":"2024-03-01T10:00:00.000+00:00","c":null}`), &o)
	require.NoError(t, err)

	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), o.A.Time)
	assert.Equal(t, 2024, o.B.Year())
	assert.True(t, o.C.IsZero())

	err = json.Unmarshal([]byte(`{"a":"yesterday"}`), &o)
	assert.Error(t, err)
}

func TestParseStatusFilter(t *testing.T) {
	f, err := ParseStatusFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	assert.True(t, f.Matches(OrderStatusShipped))

	f, err = ParseStatusFilter("shipped")
	require.NoError(t, err)
	assert.True(t, f.Matches(OrderStatusShipped))
	assert.False(t, f.Matches(OrderStatusPending))

	_, err = ParseStatusFilter("LOST")
	assert.Error(t, err)
}
