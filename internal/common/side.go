package common

import (
	"fmt"

	"ledgerbook/internal/book"
)

// ParseSide accepts the wire/CLI spellings "ask" and "bid".
func ParseSide(s string) (book.Side, error) {
	switch s {
	case "ask":
		return book.Ask, nil
	case "bid":
		return book.Bid, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSide, s)
	}
}
