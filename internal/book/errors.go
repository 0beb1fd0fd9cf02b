package book

import "errors"

var (
	// ErrInvalidSize is returned when a submission's size is not positive.
	ErrInvalidSize = errors.New("order size must be positive")
	// ErrInvalidPrice is returned when a limit submission's price is not positive.
	ErrInvalidPrice = errors.New("order price must be positive")
	// ErrUnknownOrder is returned by Cancel for an order-id the book does not hold.
	ErrUnknownOrder = errors.New("unknown order id")
	// ErrInsufficientLiquidity is returned when a market order exceeds
	// resting contra-side size.
	ErrInsufficientLiquidity = errors.New("not enough contra-side liquidity")
)
