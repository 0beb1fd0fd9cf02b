package common

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ledgerbook/internal/book"
)

func TestParseOrderType(t *testing.T) {
	lmt, err := ParseOrderType("lmt")
	assert.NoError(t, err)
	assert.Equal(t, LimitOrder, lmt)

	mkt, err := ParseOrderType("mkt")
	assert.NoError(t, err)
	assert.Equal(t, MarketOrder, mkt)

	_, err = ParseOrderType("bogus")
	assert.ErrorIs(t, err, ErrUnknownOrderType)
}

func TestParseSide(t *testing.T) {
	ask, err := ParseSide("ask")
	assert.NoError(t, err)
	assert.Equal(t, book.Ask, ask)

	bid, err := ParseSide("bid")
	assert.NoError(t, err)
	assert.Equal(t, book.Bid, bid)

	_, err = ParseSide("bogus")
	assert.ErrorIs(t, err, ErrUnknownSide)
}

func TestOrderTypeString(t *testing.T) {
	assert.Equal(t, "lmt", LimitOrder.String())
	assert.Equal(t, "mkt", MarketOrder.String())
}
