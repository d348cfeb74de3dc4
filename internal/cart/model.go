package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

type Line struct {
	ID        string
	OwnerID   uint
	VariantID string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotLine is a cart line joined with the variant's current catalog
// price. This is the price that becomes the order line snapshot.
type SnapshotLine struct {
	VariantID   string          `json:"variant_id"`
	VariantName string          `json:"variant_name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}
