package catalog

import (
	"github.com/shopspring/decimal"
)

type Variant struct {
	ID          string
	ProductID   string
	SKU         string
	Name        string
	Description string
	Price       decimal.Decimal
	Published   bool
}
