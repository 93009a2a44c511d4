package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/models"
	"storefront/internal/service"
)

func pendingOrder() *models.Order {
	return &models.Order{
		ID:                "order-1",
		BuyerID:           2,
		ProductID:         1,
		AmountMinor:       2000,
		Currency:          "USD",
		Quantity:          1,
		Status:            models.OrderPending,
		ProviderSessionID: "cs_test_1",
		CheckoutURL:       "https://pay.test/cs_test_1",
	}
}

func withStatus(o *models.Order, s models.OrderStatus) *models.Order {
	o.Status = s
	return o
}

func TestCheckout_RedirectsToHostedPage(t *testing.T) {
	checkout := &mockCheckout{startOrder: pendingOrder()}
	r := newTestRouter(newTestService(loggedIn(2), nil, checkout))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout/1?attempt=a1", nil)
	req.Header = sessionCookieHeader("tok")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d body=%s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Location"); got != "https://pay.test/cs_test_1" {
		t.Fatalf("unexpected Location %q", got)
	}
	if checkout.lastBuyer != 2 || checkout.lastProduct != 1 || checkout.lastAttempt != "a1" {
		t.Fatalf("unexpected StartCheckout args %d %d %q", checkout.lastBuyer, checkout.lastProduct, checkout.lastAttempt)
	}
}

func TestCheckout_GeneratesAttemptWhenMissing(t *testing.T) {
	checkout := &mockCheckout{startOrder: pendingOrder()}
	r := newTestRouter(newTestService(loggedIn(2), nil, checkout))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout/1", nil)
	req.Header = sessionCookieHeader("tok")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther || checkout.lastAttempt == "" {
		t.Fatalf("expected redirect with generated attempt, got %d %q", w.Code, checkout.lastAttempt)
	}
}

func TestCheckout_RequiresLogin(t *testing.T) {
	checkout := &mockCheckout{startOrder: pendingOrder()}
	r := newTestRouter(newTestService(nil, nil, checkout))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/1", nil))

	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if checkout.lastProduct != 0 {
		t.Fatalf("StartCheckout must not run for anonymous users")
	}
}

func TestCheckout_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name     string
		path     string
		err      error
		wantCode int
		wantBody string
	}{
		{name: "unknown product", path: "/checkout/99", err: service.ErrProductNotFound, wantCode: http.StatusNotFound},
		{name: "non numeric id", path: "/checkout/abc", wantCode: http.StatusNotFound},
		{name: "bad price", path: "/checkout/1", err: service.ErrInvalidPrice, wantCode: http.StatusBadRequest},
		{name: "closed attempt", path: "/checkout/1", err: service.ErrAttemptClosed, wantCode: http.StatusConflict},
		{name: "expired attempt", path: "/checkout/1", err: service.ErrSessionExpired, wantCode: http.StatusGone},
		{
			name:     "provider down",
			path:     "/checkout/1",
			err:      fmt.Errorf("%w: create_session: dial tcp: i/o timeout", service.ErrPaymentProvider),
			wantCode: http.StatusServiceUnavailable,
			wantBody: "try again",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &mockCheckout{startErr: tc.err}
			r := newTestRouter(newTestService(loggedIn(2), nil, checkout))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header = sessionCookieHeader("tok")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d", w.Code, tc.wantCode)
			}
			body := w.Body.String()
			if tc.wantBody != "" && !strings.Contains(body, tc.wantBody) {
				t.Fatalf("expected %q in body, got %s", tc.wantBody, body)
			}
			if strings.Contains(body, "dial tcp") {
				t.Fatalf("provider details must not leak")
			}
		})
	}
}

func TestOrderSuccess(t *testing.T) {
	cases := []struct {
		name     string
		order    *models.Order
		err      error
		wantCode int
		wantBody string
	}{
		{name: "paid", order: withStatus(pendingOrder(), models.OrderPaid), wantCode: http.StatusOK, wantBody: "Payment for Widget is confirmed."},
		{name: "not yet paid", order: pendingOrder(), wantCode: http.StatusOK, wantBody: "Payment not confirmed yet"},
		{name: "expired", err: service.ErrSessionExpired, wantCode: http.StatusGone},
		{name: "unknown", err: service.ErrOrderNotFound, wantCode: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &mockCheckout{confirmOrder: tc.order, confirmErr: tc.err}
			catalog := &mockCatalog{product: &testProducts[0]}
			r := newTestRouter(newTestService(nil, catalog, checkout))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/order/success?session_id=cs_test_1", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d", w.Code, tc.wantCode)
			}
			if tc.wantBody != "" && !strings.Contains(w.Body.String(), tc.wantBody) {
				t.Fatalf("expected %q in body, got %s", tc.wantBody, w.Body.String())
			}
			if checkout.lastSessionID != "cs_test_1" {
				t.Fatalf("ConfirmSuccess got %q", checkout.lastSessionID)
			}
		})
	}
}

func TestOrderSuccess_StreamsStatusUntilPaid(t *testing.T) {
	cases := []struct {
		name       string
		order      *models.Order
		wantStream bool
	}{
		{name: "pending", order: pendingOrder(), wantStream: true},
		{name: "paid", order: withStatus(pendingOrder(), models.OrderPaid)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &mockCheckout{confirmOrder: tc.order}
			r := newTestRouter(newTestService(nil, &mockCatalog{}, checkout))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/order/success?session_id=cs_test_1", nil))

			body := w.Body.String()
			if got := strings.Contains(body, `"/ws/orders/"`); got != tc.wantStream {
				t.Fatalf("status stream present = %v, want %v; body=%s", got, tc.wantStream, body)
			}
			if tc.wantStream && !strings.Contains(body, `encodeURIComponent("order-1")`) {
				t.Fatalf("expected the order id quoted for script use, body=%s", body)
			}
		})
	}
}

func TestOrderSuccess_ShowsAmount(t *testing.T) {
	checkout := &mockCheckout{confirmOrder: withStatus(pendingOrder(), models.OrderPaid)}
	r := newTestRouter(newTestService(nil, &mockCatalog{}, checkout))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/order/success?session_id=cs_test_1", nil))

	if !strings.Contains(w.Body.String(), "20.00 USD") {
		t.Fatalf("expected formatted amount, body=%s", w.Body.String())
	}
}

func TestOrderCancel(t *testing.T) {
	cases := []struct {
		name     string
		order    *models.Order
		err      error
		wantCode int
		wantBody string
	}{
		{name: "canceled", order: withStatus(pendingOrder(), models.OrderCanceled), wantCode: http.StatusOK, wantBody: "Checkout canceled"},
		{name: "paid wins", order: withStatus(pendingOrder(), models.OrderPaid), wantCode: http.StatusOK, wantBody: "Already paid"},
		{name: "expired", err: service.ErrSessionExpired, wantCode: http.StatusGone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &mockCheckout{cancelOrder: tc.order, cancelErr: tc.err}
			r := newTestRouter(newTestService(nil, nil, checkout))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/order/cancel?order_id=order-1", nil))

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d", w.Code, tc.wantCode)
			}
			if tc.wantBody != "" && !strings.Contains(w.Body.String(), tc.wantBody) {
				t.Fatalf("expected %q in body, got %s", tc.wantBody, w.Body.String())
			}
			if checkout.lastOrderID != "order-1" {
				t.Fatalf("CancelCheckout got %q", checkout.lastOrderID)
			}
		})
	}
}

func TestAPIGetOrder(t *testing.T) {
	checkout := &mockCheckout{orders: []*models.Order{pendingOrder()}}
	r := newTestRouter(newTestService(loggedIn(2), nil, checkout))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	req.Header = sessionCookieHeader("tok")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got models.Order
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "order-1" || got.Status != models.OrderPending || got.AmountMinor != 2000 {
		t.Fatalf("unexpected order %+v", got)
	}
	if strings.Contains(w.Body.String(), "idempotency") {
		t.Fatalf("idempotency key must not be exposed")
	}
	if checkout.lastBuyer != 2 {
		t.Fatalf("GetOrder must be scoped to the caller, got buyer %d", checkout.lastBuyer)
	}

	anon := newTestRouter(newTestService(nil, nil, checkout))
	w = httptest.NewRecorder()
	anon.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", w.Code)
	}
}

func TestPaymentWebhook(t *testing.T) {
	cases := []struct {
		name     string
		order    *models.Order
		err      error
		wantCode int
	}{
		{name: "reconciled", order: withStatus(pendingOrder(), models.OrderPaid), wantCode: http.StatusOK},
		{name: "ignored event", wantCode: http.StatusOK},
		{name: "bad signature", err: fmt.Errorf("%w: no signatures found", service.ErrBadSignature), wantCode: http.StatusBadRequest},
		{name: "provider down", err: fmt.Errorf("%w: get_session: eof", service.ErrPaymentProvider), wantCode: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkout := &mockCheckout{eventOrder: tc.order, eventErr: tc.err}
			r := newTestRouter(newTestService(nil, nil, checkout))

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d, body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if string(checkout.lastPayload) != `{"id":"evt_1"}` || checkout.lastSignature != "t=1,v1=abc" {
				t.Fatalf("payload/signature not forwarded: %q %q", checkout.lastPayload, checkout.lastSignature)
			}
			if tc.order != nil && !strings.Contains(w.Body.String(), `"status":"paid"`) {
				t.Fatalf("expected order status in body, got %s", w.Body.String())
			}
		})
	}
}

func TestPaymentWebhook_RejectsOversizedBody(t *testing.T) {
	checkout := &mockCheckout{}
	r := newTestRouter(newTestService(nil, nil, checkout))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(strings.Repeat("x", maxWebhookBody+1)))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if checkout.lastPayload != nil {
		t.Fatalf("oversized payload must not reach the service")
	}
}
