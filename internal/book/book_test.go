package book

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestBook() *OrderBook {
	return New("AAPL")
}

// --- Limit order basics ----------------------------------------------------

func TestSubmitLimit_RestsWhenNoCross(t *testing.T) {
	b := newTestBook()

	id, events, err := b.SubmitLimit(Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Empty(t, events)
	assert.Equal(t, uint64(10), b.TotalBidSize())
	assert.True(t, b.Bid().Equal(d("100.00")))
	assert.True(t, b.Ask().Equal(PriceSentinel))
}

func TestSubmitLimit_RejectsZeroSize(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitLimit(Bid, 0, d("100.00"), "alice")
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestSubmitLimit_RejectsNonPositivePrice(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitLimit(Bid, 10, d("0"), "alice")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, _, err = b.SubmitLimit(Bid, 10, d("-5"), "alice")
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

// --- Matching: price-time priority -----------------------------------------

func TestMatch_FullFillAtTouch(t *testing.T) {
	b := newTestBook()

	_, _, err := b.SubmitLimit(Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)

	_, events, err := b.SubmitLimit(Ask, 10, d("100.00"), "bob")
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, PublicTrade, events[0].Kind)
	assert.Equal(t, uint64(10), events[0].Size)
	assert.True(t, events[0].Price.Equal(d("100.00")))

	// The ask-side fill is reported first and carries the second
	// (aggressing) order-id; the bid-side fill carries the first.
	assert.Equal(t, PrivateFill, events[1].Kind)
	assert.Equal(t, Ask, events[1].Side)
	assert.Equal(t, "bob", events[1].ParticipantID)
	assert.Equal(t, uint64(2), events[1].OrderID)

	assert.Equal(t, PrivateFill, events[2].Kind)
	assert.Equal(t, Bid, events[2].Side)
	assert.Equal(t, "alice", events[2].ParticipantID)
	assert.Equal(t, uint64(1), events[2].OrderID)

	assert.Equal(t, uint64(0), b.TotalBidSize())
	assert.Equal(t, uint64(0), b.TotalAskSize())
	assert.Equal(t, uint64(10), b.TotalVolumeTraded())
	assert.Equal(t, uint64(2), b.ClearedOrdersCount())
}

func TestMatch_PrintsAtRestingBidPrice(t *testing.T) {
	b := newTestBook()

	_, _, err := b.SubmitLimit(Bid, 10, d("101.50"), "alice")
	require.NoError(t, err)

	// An aggressive ask priced below the resting bid still prints at the
	// resting bid price of the touch.
	_, events, err := b.SubmitLimit(Ask, 10, d("99.00"), "bob")
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.True(t, events[0].Price.Equal(d("101.50")))
}

func TestMatch_TimePriorityWithinPriceLevel(t *testing.T) {
	b := newTestBook()

	firstID, _, err := b.SubmitLimit(Bid, 5, d("100.00"), "first")
	require.NoError(t, err)
	_, _, err = b.SubmitLimit(Bid, 5, d("100.00"), "second")
	require.NoError(t, err)

	_, events, err := b.SubmitLimit(Ask, 5, d("100.00"), "taker")
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, firstID, events[2].OrderID)
	assert.Equal(t, "first", events[2].ParticipantID)

	ids, _ := b.GetParticipantOrders("second")
	assert.Len(t, ids, 1)
}

func TestMatch_PartialFillLeavesRemainderResting(t *testing.T) {
	b := newTestBook()

	bidID, _, err := b.SubmitLimit(Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)

	_, events, err := b.SubmitLimit(Ask, 4, d("100.00"), "bob")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	assert.Equal(t, uint64(6), b.TotalBidSize())
	_, details := b.GetParticipantOrders("alice")
	assert.Equal(t, uint64(6), details[bidID].Size)
}

// --- Market orders -----------------------------------------------------

func TestSubmitMarket_RejectsInsufficientLiquidity(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitLimit(Bid, 5, d("100.00"), "alice")
	require.NoError(t, err)

	orderID, events, err := b.SubmitMarket(Ask, 10, "bob")
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	assert.Equal(t, int64(-1), orderID)
	assert.Nil(t, events)
}

func TestSubmitMarket_SweepsMultipleLevels(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitLimit(Bid, 5, d("101.00"), "alice")
	require.NoError(t, err)
	_, _, err = b.SubmitLimit(Bid, 5, d("100.00"), "carol")
	require.NoError(t, err)

	_, events, err := b.SubmitMarket(Ask, 10, "bob")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	assert.Equal(t, uint64(0), b.TotalBidSize())
	assert.Equal(t, uint64(10), b.TotalVolumeTraded())

	var trades []Event
	for _, ev := range events {
		if ev.Kind == PublicTrade {
			trades = append(trades, ev)
		}
	}
	require.Len(t, trades, 2)
	assert.True(t, trades[0].Price.Equal(d("101.00")))
	assert.True(t, trades[1].Price.Equal(d("100.00")))
}

func TestSubmitMarket_RejectsZeroSize(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitMarket(Ask, 0, "bob")
	assert.ErrorIs(t, err, ErrInvalidSize)
}

// --- Cancel ------------------------------------------------------------

func TestCancel_RemovesFromAllIndices(t *testing.T) {
	b := newTestBook()
	id, _, err := b.SubmitLimit(Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)

	require.NoError(t, b.Cancel(id))

	assert.Equal(t, uint64(0), b.TotalBidSize())
	assert.Equal(t, uint64(0), b.TotalVolumePending())
	assert.True(t, b.Bid().Equal(PriceSentinel))

	ids, details := b.GetParticipantOrders("alice")
	assert.Empty(t, ids)
	assert.Empty(t, details)

	assert.ErrorIs(t, b.Cancel(id), ErrUnknownOrder)
}

func TestCancel_UnknownOrderID(t *testing.T) {
	b := newTestBook()
	assert.ErrorIs(t, b.Cancel(999), ErrUnknownOrder)
}

func TestCancel_DoesNotAffectClearedOrdersCount(t *testing.T) {
	b := newTestBook()
	id, _, err := b.SubmitLimit(Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)
	require.NoError(t, b.Cancel(id))
	assert.Equal(t, uint64(0), b.ClearedOrdersCount())
}

// --- Market depth --------------------------------------------------------

func TestGetMarketDepth_AggregatesAndCaps(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitLimit(Bid, 5, d("100.00"), "alice")
	require.NoError(t, err)
	_, _, err = b.SubmitLimit(Bid, 5, d("100.00"), "carol")
	require.NoError(t, err)
	_, _, err = b.SubmitLimit(Bid, 5, d("99.00"), "dave")
	require.NoError(t, err)

	_, bids := b.GetMarketDepth(1)
	require.Len(t, bids, 1)
	assert.True(t, bids[0].Price.Equal(d("100.00")))
	assert.Equal(t, uint64(10), bids[0].Size)
}

func TestGetMarketDepth_OrderedBestFirst(t *testing.T) {
	b := newTestBook()
	for _, lvl := range []struct {
		price string
		size  uint64
	}{{"10", 2}, {"20", 4}, {"30", 6}} {
		_, _, err := b.SubmitLimit(Ask, lvl.size, d(lvl.price), "maker")
		require.NoError(t, err)
	}
	for _, lvl := range []struct {
		price string
		size  uint64
	}{{"1", 1}, {"2", 5}, {"3", 7}} {
		_, _, err := b.SubmitLimit(Bid, lvl.size, d(lvl.price), "taker")
		require.NoError(t, err)
	}

	asks, bids := b.GetMarketDepth(3)
	require.Len(t, asks, 3)
	require.Len(t, bids, 3)

	// Asks ascend from the best ask; bids descend from the best bid.
	assert.True(t, asks[0].Price.Equal(d("10")))
	assert.Equal(t, uint64(2), asks[0].Size)
	assert.True(t, asks[2].Price.Equal(d("30")))
	assert.True(t, bids[0].Price.Equal(d("3")))
	assert.Equal(t, uint64(7), bids[0].Size)
	assert.True(t, bids[2].Price.Equal(d("1")))
}

func TestSpread(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitLimit(Ask, 10, d("12.5"), "alice")
	require.NoError(t, err)
	_, _, err = b.SubmitLimit(Bid, 10, d("10.5"), "bob")
	require.NoError(t, err)

	assert.True(t, b.Spread().Equal(d("2")))
}

// --- Decimal precision regression ---------------------------------------

func TestPriceLevel_DecimalPrecisionMatchesExactly(t *testing.T) {
	b := newTestBook()

	// 0.10 + 0.20 is not exactly representable in binary floating point;
	// both submissions must land on the same price-level key.
	sum := d("0.10").Add(d("0.20"))
	_, _, err := b.SubmitLimit(Bid, 3, sum, "alice")
	require.NoError(t, err)
	_, _, err = b.SubmitLimit(Bid, 4, d("0.30"), "carol")
	require.NoError(t, err)

	_, bids := b.GetMarketDepth(5)
	require.Len(t, bids, 1)
	assert.Equal(t, uint64(7), bids[0].Size)
}

// --- Snapshot round-trip --------------------------------------------------

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	b := newTestBook()
	_, _, err := b.SubmitLimit(Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)
	_, _, err = b.SubmitLimit(Ask, 15, d("101.00"), "bob")
	require.NoError(t, err)

	snap := b.Snapshot()
	restored := Restore(snap)

	assert.Equal(t, b.Ticker(), restored.Ticker())
	assert.True(t, restored.Bid().Equal(b.Bid()))
	assert.True(t, restored.Ask().Equal(b.Ask()))
	assert.Equal(t, b.TotalBidSize(), restored.TotalBidSize())
	assert.Equal(t, b.TotalAskSize(), restored.TotalAskSize())

	// The restored book must continue to match identically to the original.
	_, events, err := restored.SubmitLimit(Ask, 10, d("100.00"), "carol")
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}
