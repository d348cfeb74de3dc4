package cart

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("invalid cart quantity")

	// -- Resource State --
	ErrLineNotFound = errors.New("cart line not found")
	ErrCartEmpty    = errors.New("cart is empty")

	// -- Constants (External Systems) --
	PgUniqueViolation = "23505"
)

// isUniqueViolation reports a postgres duplicate-key failure, the signal
// that a concurrent request already materialized the row.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation
}
