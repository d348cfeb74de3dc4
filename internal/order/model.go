package order

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCanceled  Status = "CANCELED"
)

type Order struct {
	ID            uint
	OwnerID       uint
	Status        Status
	PaymentStatus bool
	// TotalAmount is fixed at creation from the cart snapshot and never
	// recomputed afterwards.
	TotalAmount decimal.Decimal
	// Billing details are snapshotted at checkout so the invoice reflects
	// what the buyer entered, not their profile at invoicing time.
	CustomerName      string
	CustomerEmail     string
	BillingAddress    string
	ShippingAddress   string
	GatewayOrderRef   sql.NullString
	GatewayPaymentRef sql.NullString
	GatewaySignature  sql.NullString
	GatewayInvoiceRef sql.NullString
	InvoiceDocRef     sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Lines             []Line
}

// Line is immutable after creation; UnitPrice is the snapshot price.
type Line struct {
	ID          uint
	OrderID     uint
	VariantID   string
	VariantName string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Registered reports whether the order already holds a gateway order
// reference.
func (o *Order) Registered() bool {
	return o.GatewayOrderRef.Valid && o.GatewayOrderRef.String != ""
}

func (o *Order) Invoiced() bool {
	return o.GatewayInvoiceRef.Valid || o.InvoiceDocRef.Valid
}
