package payment

import (
	"encoding/json"
	"time"
)

// Attempt records every gateway payment reference seen for an order,
// captured or not, for audit.
type Attempt struct {
	ID          int64
	OrderID     uint
	PaymentRef  string
	Status      string
	AmountMinor int64
	RawPayload  json.RawMessage
	CreatedAt   time.Time
}
