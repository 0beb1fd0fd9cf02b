package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerbook/internal/book"
	"ledgerbook/internal/common"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakeReporter struct {
	tickers []string
	events  [][]book.Event
}

func (f *fakeReporter) ReportTrades(ticker string, events []book.Event) {
	f.tickers = append(f.tickers, ticker)
	f.events = append(f.events, events)
}

func TestEngine_RoutesByTicker(t *testing.T) {
	e := New("AAPL", "MSFT")

	_, _, err := e.PlaceOrder("AAPL", common.LimitOrder, book.Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)

	asks, bids, err := e.GetMarketDepth("AAPL", 5)
	require.NoError(t, err)
	assert.Empty(t, asks)
	require.Len(t, bids, 1)

	_, _, err = e.GetMarketDepth("MSFT", 5)
	require.NoError(t, err)
}

func TestEngine_UnknownTickerRejected(t *testing.T) {
	e := New("AAPL")
	_, _, err := e.PlaceOrder("TSLA", common.LimitOrder, book.Bid, 10, d("100.00"), "alice")
	assert.ErrorIs(t, err, common.ErrUnknownTicker)
}

func TestEngine_ReportsMatchesToReporter(t *testing.T) {
	e := New("AAPL")
	reporter := &fakeReporter{}
	e.SetReporter(reporter)

	_, _, err := e.PlaceOrder("AAPL", common.LimitOrder, book.Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)

	_, _, err = e.PlaceOrder("AAPL", common.LimitOrder, book.Ask, 10, d("100.00"), "bob")
	require.NoError(t, err)

	require.Len(t, reporter.events, 1)
	assert.Equal(t, "AAPL", reporter.tickers[0])
	assert.NotEmpty(t, reporter.events[0])
}

func TestEngine_CancelOrder(t *testing.T) {
	e := New("AAPL")
	id, _, err := e.PlaceOrder("AAPL", common.LimitOrder, book.Bid, 10, d("100.00"), "alice")
	require.NoError(t, err)

	require.NoError(t, e.CancelOrder("AAPL", uint64(id)))
	assert.ErrorIs(t, e.CancelOrder("AAPL", uint64(id)), book.ErrUnknownOrder)
}

func TestEngine_MountReplacesBook(t *testing.T) {
	e := New("AAPL")
	restored := book.New("AAPL")
	_, _, err := restored.SubmitLimit(book.Bid, 5, d("50.00"), "carol")
	require.NoError(t, err)

	e.Mount("AAPL", restored)
	asks, bids, err := e.GetMarketDepth("AAPL", 5)
	require.NoError(t, err)
	assert.Empty(t, asks)
	require.Len(t, bids, 1)
}
