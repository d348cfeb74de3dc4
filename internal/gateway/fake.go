package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"storefront-be/internal/fault"
)

// Fake is an in-memory Client for tests and local wiring. It issues
// deterministic references and signs payments with the configured secret so
// the strict verification path can be exercised without a network.
type Fake struct {
	mu       sync.Mutex
	secret   string
	orders   map[string]CreateOrderRequest
	payments map[string]Payment
	invoices []InvoiceRequest
	orderSeq int
}

func NewFake(secret string) *Fake {
	return &Fake{
		secret:   secret,
		orders:   make(map[string]CreateOrderRequest),
		payments: make(map[string]Payment),
	}
}

func (f *Fake) KeyID() string { return "fake_key" }

func (f *Fake) CreateRemoteOrder(_ context.Context, req CreateOrderRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.orderSeq++
	ref := fmt.Sprintf("fake_order_%d", f.orderSeq)
	f.orders[ref] = req
	return ref, nil
}

// CapturePayment simulates a gateway-side capture and returns the payment
// reference plus a valid signature for it.
func (f *Fake) CapturePayment(orderRef string, amountMinor int64) (paymentRef, signature string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	paymentRef = fmt.Sprintf("fake_pay_%d", len(f.payments)+1)
	f.payments[paymentRef] = Payment{
		Ref:         paymentRef,
		OrderRef:    orderRef,
		Status:      StatusCaptured,
		AmountMinor: amountMinor,
	}
	return paymentRef, f.Sign(orderRef, paymentRef)
}

// FailPayment records a payment the gateway reports as failed.
func (f *Fake) FailPayment(orderRef string, amountMinor int64) (paymentRef, signature string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	paymentRef = fmt.Sprintf("fake_pay_%d", len(f.payments)+1)
	f.payments[paymentRef] = Payment{
		Ref:         paymentRef,
		OrderRef:    orderRef,
		Status:      StatusFailed,
		AmountMinor: amountMinor,
	}
	return paymentRef, f.Sign(orderRef, paymentRef)
}

func (f *Fake) FetchPayment(_ context.Context, paymentRef string) (*Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[paymentRef]
	if !ok {
		return nil, fault.New(fault.KindGatewayRejected, "payment not found")
	}
	return &p, nil
}

func (f *Fake) FetchOrderPayments(_ context.Context, orderRef string) ([]Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []Payment
	for _, p := range f.payments {
		if p.OrderRef == orderRef {
			result = append(result, p)
		}
	}
	return result, nil
}

func (f *Fake) Sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(f.secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *Fake) VerifySignature(orderRef, paymentRef, signature string) error {
	expected := f.Sign(orderRef, paymentRef)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fault.New(fault.KindSignatureInvalid, "payment signature mismatch")
	}
	return nil
}

func (f *Fake) CreateInvoice(_ context.Context, req InvoiceRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invoices = append(f.invoices, req)
	return fmt.Sprintf("fake_inv_%d", len(f.invoices)), nil
}

// LastInvoice returns the most recent invoice request, or nil when none
// was issued yet.
func (f *Fake) LastInvoice() *InvoiceRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.invoices) == 0 {
		return nil
	}
	req := f.invoices[len(f.invoices)-1]
	return &req
}
