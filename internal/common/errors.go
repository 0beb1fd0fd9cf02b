package common

import "errors"

var (
	// ErrUnknownOrderType is returned when a submission names an order_type
	// other than "lmt" or "mkt".
	ErrUnknownOrderType = errors.New("unknown order type")
	// ErrUnknownSide is returned when a submission names a side other than
	// "ask" or "bid".
	ErrUnknownSide = errors.New("unknown side")
	// ErrUnknownTicker is returned when a submission or query names an
	// instrument the engine does not carry a book for.
	ErrUnknownTicker = errors.New("unknown ticker")
)
