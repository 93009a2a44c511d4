package models

import (
	"testing"
	"time"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderCreated, OrderPending, true},
		{OrderCreated, OrderPaid, false},
		{OrderCreated, OrderExpired, true},
		{OrderPending, OrderPaid, true},
		{OrderPending, OrderCanceled, true},
		{OrderPending, OrderCreated, false},
		{OrderCanceled, OrderPaid, true},
		{OrderCanceled, OrderPending, false},
		{OrderExpired, OrderPaid, true},
		{OrderPaid, OrderCanceled, false},
		{OrderPaid, OrderExpired, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOrder_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	o := Order{ExpiresAt: now.Add(time.Hour)}

	if o.Expired(now) {
		t.Fatalf("order should not be expired before ExpiresAt")
	}
	if !o.Expired(now.Add(time.Hour)) {
		t.Fatalf("order should be expired exactly at ExpiresAt")
	}
	if (Order{}).Expired(now) {
		t.Fatalf("zero ExpiresAt must never count as expired")
	}
}
