package order

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrGatewayRefAssigned = errors.New("gateway order reference already assigned")
	ErrOpenOrderExists    = errors.New("owner already has an open order")
)
