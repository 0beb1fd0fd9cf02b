// Package engine owns one order book per traded instrument and dispatches
// submissions, cancellations and queries to the right one.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"ledgerbook/internal/book"
	"ledgerbook/internal/common"
)

// Reporter receives the trade events produced by a match so they can be
// delivered to an external transport (the TCP server) or otherwise
// consumed.
type Reporter interface {
	ReportTrades(ticker string, events []book.Event)
}

// Engine owns one *book.OrderBook per ticker and serializes access to each
// from concurrent callers (the TCP server's worker pool). The book itself
// assumes no concurrent mutation, so the engine is what provides the
// single exclusive critical section a multi-threaded host needs.
type Engine struct {
	mu       sync.Mutex
	books    map[string]*book.OrderBook
	reporter Reporter
}

// New mounts an empty book for each given ticker.
func New(tickers ...string) *Engine {
	books := make(map[string]*book.OrderBook, len(tickers))
	for _, ticker := range tickers {
		books[ticker] = book.New(ticker)
	}
	return &Engine{books: books}
}

// SetReporter installs the sink that trade events are forwarded to after
// every match. Nil-safe: an engine with no reporter simply logs.
func (e *Engine) SetReporter(r Reporter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reporter = r
}

// PlaceOrder submits a limit or market order on the named ticker, returning
// the assigned order-id (or 0 for an admitted market order, -1 for a
// rejected one) plus the events the match produced.
func (e *Engine) PlaceOrder(ticker string, orderType common.OrderType, side book.Side, size uint64, price decimal.Decimal, participantID string) (int64, []book.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[ticker]
	if !ok {
		return 0, nil, fmt.Errorf("%w: %q", common.ErrUnknownTicker, ticker)
	}

	var (
		orderID int64
		events  []book.Event
		err     error
	)

	switch orderType {
	case common.LimitOrder:
		var id uint64
		id, events, err = b.SubmitLimit(side, size, price, participantID)
		orderID = int64(id)
	case common.MarketOrder:
		orderID, events, err = b.SubmitMarket(side, size, participantID)
	default:
		return 0, nil, fmt.Errorf("%w: %v", common.ErrUnknownOrderType, orderType)
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("ticker", ticker).
			Str("orderType", orderType.String()).
			Str("side", side.String()).
			Uint64("size", size).
			Msg("order rejected")
		return orderID, events, err
	}

	e.reportMatches(ticker, events)
	return orderID, events, nil
}

// CancelOrder cancels a resting order on the named ticker.
func (e *Engine) CancelOrder(ticker string, orderID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[ticker]
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrUnknownTicker, ticker)
	}
	if err := b.Cancel(orderID); err != nil {
		log.Error().Err(err).Str("ticker", ticker).Uint64("orderID", orderID).Msg("cancel failed")
		return err
	}
	log.Info().Str("ticker", ticker).Uint64("orderID", orderID).Msg("order cancelled")
	return nil
}

// GetMarketDepth reads the aggregated depth on the named ticker's book.
func (e *Engine) GetMarketDepth(ticker string, depth int) ([]book.DepthLevel, []book.DepthLevel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[ticker]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", common.ErrUnknownTicker, ticker)
	}
	asks, bids := b.GetMarketDepth(depth)
	return asks, bids, nil
}

// GetParticipantOrders reads a participant's live orders on the named
// ticker's book.
func (e *Engine) GetParticipantOrders(ticker, participantID string) ([]uint64, map[uint64]book.OrderDetail, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[ticker]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", common.ErrUnknownTicker, ticker)
	}
	ids, details := b.GetParticipantOrders(participantID)
	return ids, details, nil
}

// Book returns the live book for a ticker, for queries the engine does not
// wrap directly (scalar reads, snapshotting).
func (e *Engine) Book(ticker string) (*book.OrderBook, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[ticker]
	return b, ok
}

// Mount replaces (or adds) the book for a ticker, used to swap in a book
// restored from a snapshot before the engine starts serving traffic.
func (e *Engine) Mount(ticker string, b *book.OrderBook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.books[ticker] = b
}

// Tickers lists every instrument currently mounted on the engine.
func (e *Engine) Tickers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	tickers := make([]string, 0, len(e.books))
	for ticker := range e.books {
		tickers = append(tickers, ticker)
	}
	return tickers
}

// LogBook writes a structured summary of every mounted book's monitoring
// counters.
func (e *Engine) LogBook() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for ticker, b := range e.books {
		log.Info().
			Str("ticker", ticker).
			Str("ask", b.Ask().String()).
			Str("bid", b.Bid().String()).
			Uint64("totalAskSize", b.TotalAskSize()).
			Uint64("totalBidSize", b.TotalBidSize()).
			Uint64("totalVolumeTraded", b.TotalVolumeTraded()).
			Uint64("totalVolumePending", b.TotalVolumePending()).
			Uint64("clearedOrders", b.ClearedOrdersCount()).
			Msg("book state")
	}
}

// reportMatches forwards a match's events to the installed Reporter and
// logs a one-line summary.
func (e *Engine) reportMatches(ticker string, events []book.Event) {
	if len(events) == 0 {
		return
	}

	traded := 0
	for _, ev := range events {
		if ev.Kind == book.PublicTrade {
			traded++
		}
	}
	log.Info().
		Str("ticker", ticker).
		Int("fills", traded).
		Time("at", time.Now()).
		Msg("trade executed")

	if e.reporter != nil {
		e.reporter.ReportTrades(ticker, events)
	}
}
