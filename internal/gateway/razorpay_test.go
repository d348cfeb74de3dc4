package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-be/internal/fault"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"250.00", 25000},
		{"200.00", 20000},
		{"0.01", 1},
		{"99.99", 9999},
		{"1234.50", 123450},
	}

	for _, tt := range tests {
		got := MinorUnits(decimal.RequireFromString(tt.amount))
		assert.Equal(t, tt.want, got, "amount %s", tt.amount)
	}
}

func TestRazorpayClient_CreateRemoteOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/orders", r.URL.Path)

			user, pass, ok := r.BasicAuth()
			require.True(t, ok)
			assert.Equal(t, "key_id", user)
			assert.Equal(t, "key_secret", pass)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, float64(25000), body["amount"])
			assert.Equal(t, "INR", body["currency"])
			assert.Equal(t, "rcpt_10", body["receipt"])

			json.NewEncoder(w).Encode(map[string]string{"id": "order_A1"})
		}))
		defer srv.Close()

		client := NewRazorpayClient(srv.URL, "key_id", "key_secret")
		ref, err := client.CreateRemoteOrder(context.Background(), CreateOrderRequest{
			AmountMinor: 25000,
			Currency:    "INR",
			Receipt:     "rcpt_10",
		})
		assert.NoError(t, err)
		assert.Equal(t, "order_A1", ref)
	})

	t.Run("RejectedOn4xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"description": "amount must be at least 100"},
			})
		}))
		defer srv.Close()

		client := NewRazorpayClient(srv.URL, "key_id", "key_secret")
		_, err := client.CreateRemoteOrder(context.Background(), CreateOrderRequest{AmountMinor: 1})
		assert.True(t, fault.IsKind(err, fault.KindGatewayRejected))
		assert.Contains(t, err.Error(), "amount must be at least 100")
	})

	t.Run("UnavailableOn5xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		client := NewRazorpayClient(srv.URL, "key_id", "key_secret")
		_, err := client.CreateRemoteOrder(context.Background(), CreateOrderRequest{AmountMinor: 25000})
		assert.True(t, fault.IsKind(err, fault.KindGatewayUnavailable))
		assert.True(t, fault.Retryable(err))
	})

	t.Run("UnavailableOnTransportError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // connection refused

		client := NewRazorpayClient(srv.URL, "key_id", "key_secret")
		_, err := client.CreateRemoteOrder(context.Background(), CreateOrderRequest{AmountMinor: 25000})
		assert.True(t, fault.IsKind(err, fault.KindGatewayUnavailable))
	})
}

func TestRazorpayClient_FetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_B2", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "pay_B2",
			"order_id": "order_A1",
			"status":   "captured",
			"amount":   25000,
			"method":   "upi",
		})
	}))
	defer srv.Close()

	client := NewRazorpayClient(srv.URL, "key_id", "key_secret")
	p, err := client.FetchPayment(context.Background(), "pay_B2")
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, p.Status)
	assert.Equal(t, "order_A1", p.OrderRef)
	assert.Equal(t, int64(25000), p.AmountMinor)
}

func TestRazorpayClient_FetchOrderPayments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/order_A1/payments", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": "pay_1", "order_id": "order_A1", "status": "failed", "amount": 25000},
				{"id": "pay_2", "order_id": "order_A1", "status": "captured", "amount": 25000},
			},
		})
	}))
	defer srv.Close()

	client := NewRazorpayClient(srv.URL, "key_id", "key_secret")
	payments, err := client.FetchOrderPayments(context.Background(), "order_A1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, StatusFailed, payments[0].Status)
	assert.Equal(t, StatusCaptured, payments[1].Status)
}

func TestRazorpayClient_VerifySignature(t *testing.T) {
	client := NewRazorpayClient("http://unused", "key_id", "key_secret")

	sign := func(payload string) string {
		mac := hmac.New(sha256.New, []byte("key_secret"))
		mac.Write([]byte(payload))
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("Valid", func(t *testing.T) {
		sig := sign("order_A1|pay_B2")
		assert.NoError(t, client.VerifySignature("order_A1", "pay_B2", sig))
	})

	t.Run("Tampered", func(t *testing.T) {
		sig := sign("order_A1|pay_OTHER")
		err := client.VerifySignature("order_A1", "pay_B2", sig)
		assert.True(t, fault.IsKind(err, fault.KindSignatureInvalid))
	})

	t.Run("Garbage", func(t *testing.T) {
		err := client.VerifySignature("order_A1", "pay_B2", "not-a-signature")
		assert.True(t, fault.IsKind(err, fault.KindSignatureInvalid))
	})
}

func TestRazorpayClient_CreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		lines := body["line_items"].([]interface{})
		require.Len(t, lines, 2)
		first := lines[0].(map[string]interface{})
		assert.Equal(t, float64(5000), first["amount"])
		assert.Equal(t, float64(2), first["quantity"])

		json.NewEncoder(w).Encode(map[string]string{"id": "inv_C3"})
	}))
	defer srv.Close()

	client := NewRazorpayClient(srv.URL, "key_id", "key_secret")
	ref, err := client.CreateInvoice(context.Background(), InvoiceRequest{
		OrderRef:      "order_A1",
		CustomerName:  "A Customer",
		CustomerEmail: "c@example.com",
		Currency:      "INR",
		Lines: []InvoiceLine{
			{Name: "Variant A", Quantity: 2, AmountMinor: 5000},
			{Name: "Variant B", Quantity: 1, AmountMinor: 10000},
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, "inv_C3", ref)
}
