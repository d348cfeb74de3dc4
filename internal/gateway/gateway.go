package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Payment statuses as the gateway reports them.
const (
	StatusCreated    = "created"
	StatusAuthorized = "authorized"
	StatusCaptured   = "captured"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

type CreateOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
}

type Payment struct {
	Ref         string
	OrderRef    string
	Status      string
	AmountMinor int64
	Method      string
}

type InvoiceLine struct {
	Name        string
	Description string
	Quantity    int
	AmountMinor int64
}

type InvoiceRequest struct {
	OrderRef        string
	CustomerName    string
	CustomerEmail   string
	BillingAddress  string
	ShippingAddress string
	Currency        string
	Lines           []InvoiceLine
}

// Client is the external payment gateway contract. Implementations must
// bound every remote call by the request context and report transient
// failures as KindGatewayUnavailable, permanent rejections as
// KindGatewayRejected.
type Client interface {
	CreateRemoteOrder(ctx context.Context, req CreateOrderRequest) (string, error)
	FetchPayment(ctx context.Context, paymentRef string) (*Payment, error)
	FetchOrderPayments(ctx context.Context, orderRef string) ([]Payment, error)
	VerifySignature(orderRef, paymentRef, signature string) error
	CreateInvoice(ctx context.Context, req InvoiceRequest) (string, error)
	KeyID() string
}

// VerificationPolicy selects how a payment confirmation is trusted.
// The bypass variant skips the gateway status round-trip for deterministic
// tests; it never skips signature verification.
type VerificationPolicy int

const (
	VerifyStrict VerificationPolicy = iota
	VerifyBypassForTesting
)

func PolicyFromString(s string) VerificationPolicy {
	if s == "bypass" {
		return VerifyBypassForTesting
	}
	return VerifyStrict
}

// MinorUnits converts a 2dp decimal amount into the smallest currency unit.
// This is the only place the x100 conversion happens.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
