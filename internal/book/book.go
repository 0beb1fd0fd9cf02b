// Package book implements the single-instrument limit order book: the two
// price-indexed order queues, the participant and price-id indices, and the
// matching loop that enforces price-time priority between them.
package book

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// Side identifies which side of the book an order rests on.
type Side int

const (
	Ask Side = iota
	Bid
)

func (s Side) String() string {
	if s == Bid {
		return "bid"
	}
	return "ask"
}

// Order is a single resting (or, for the duration of a market sweep,
// synthetic) limit order.
type Order struct {
	ID            uint64
	UUID          string
	Side          Side
	Price         decimal.Decimal
	Size          uint64 // remaining size
	ParticipantID string
}

// priceLevel holds every order resting at one price on one side, ordered by
// order-id so iteration preserves submission (time) priority.
type priceLevel struct {
	price  decimal.Decimal
	orders *btree.BTreeG[*Order]
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{
		price:  price,
		orders: btree.NewBTreeG(func(a, b *Order) bool { return a.ID < b.ID }),
	}
}

func (lvl *priceLevel) aggregateSize() uint64 {
	var total uint64
	lvl.orders.Scan(func(order *Order) bool {
		total += order.Size
		return true
	})
	return total
}

// orderLocation is the price-id index entry: where a live order-id
// currently resides.
type orderLocation struct {
	Price decimal.Decimal
	Side  Side
}

// participantOrders is a participant's live order-ids, kept in ascending
// (submission) order by simple in-place deletion rather than rebuilding the
// sequence on every fill.
type participantOrders struct {
	orderIDs []uint64
}

func (po *participantOrders) remove(orderID uint64) {
	for i, id := range po.orderIDs {
		if id == orderID {
			po.orderIDs = append(po.orderIDs[:i], po.orderIDs[i+1:]...)
			return
		}
	}
}

// OrderBook owns the ordered containers and indices for one instrument and
// enforces price-time priority between them.
type OrderBook struct {
	ticker string

	asks *btree.BTreeG[*priceLevel] // ascending price: Min() is the best ask
	bids *btree.BTreeG[*priceLevel] // descending price: Min() is the best bid

	priceIndex   map[uint64]orderLocation
	ownerIndex   map[uint64]string
	participants map[string]*participantOrders

	totalAskSize       uint64
	totalBidSize       uint64
	totalVolumeTraded  uint64
	totalVolumePending uint64
	lastOrderID        uint64
	clearedOrdersCount uint64
}

// New creates an empty order book for the given ticker.
func New(ticker string) *OrderBook {
	return &OrderBook{
		ticker:       ticker,
		asks:         btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price.LessThan(b.price) }),
		bids:         btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price.GreaterThan(b.price) }),
		priceIndex:   make(map[uint64]orderLocation),
		ownerIndex:   make(map[uint64]string),
		participants: make(map[string]*participantOrders),
	}
}

// Ticker is the instrument this book backs.
func (book *OrderBook) Ticker() string { return book.ticker }

func (book *OrderBook) nextOrderID() uint64 {
	book.lastOrderID++
	return book.lastOrderID
}

func (book *OrderBook) levelsFor(side Side) *btree.BTreeG[*priceLevel] {
	if side == Bid {
		return book.bids
	}
	return book.asks
}

// SubmitLimit places a resting limit order and runs the matching loop
// against it. It returns the assigned order-id and the trade events the
// match produced.
func (book *OrderBook) SubmitLimit(side Side, size uint64, price decimal.Decimal, participantID string) (uint64, []Event, error) {
	if size == 0 {
		return 0, nil, ErrInvalidSize
	}
	if price.Sign() <= 0 {
		return 0, nil, ErrInvalidPrice
	}

	orderID := book.insertLimit(side, size, price, participantID, uuid.New().String())
	events := book.match()
	return orderID, events, nil
}

// insertLimit performs the index registration shared by both
// externally-submitted limit orders and the synthetic limits a market
// order is decomposed into.
func (book *OrderBook) insertLimit(side Side, size uint64, price decimal.Decimal, participantID, orderUUID string) uint64 {
	orderID := book.nextOrderID()

	book.totalVolumePending += size
	book.priceIndex[orderID] = orderLocation{Price: price, Side: side}
	book.ownerIndex[orderID] = participantID

	po, ok := book.participants[participantID]
	if !ok {
		po = &participantOrders{}
		book.participants[participantID] = po
	}
	po.orderIDs = append(po.orderIDs, orderID)

	order := &Order{
		ID:            orderID,
		UUID:          orderUUID,
		Side:          side,
		Price:         price,
		Size:          size,
		ParticipantID: participantID,
	}

	levels := book.levelsFor(side)
	level, ok := levels.Get(&priceLevel{price: price})
	if !ok {
		level = newPriceLevel(price)
		levels.Set(level)
	}
	level.orders.Set(order)

	switch side {
	case Ask:
		book.totalAskSize += size
	case Bid:
		book.totalBidSize += size
	}

	return orderID
}

// SubmitMarket decomposes a market order into a sequence of price-taking
// limit orders against the best available contra-side prices, matching
// each one as it is synthesized. It returns -1 and no events
// if the book does not hold enough contra-side liquidity to fill it.
func (book *OrderBook) SubmitMarket(side Side, size uint64, participantID string) (int64, []Event, error) {
	if size == 0 {
		return 0, nil, ErrInvalidSize
	}

	var contraTotal uint64
	switch side {
	case Ask:
		contraTotal = book.totalBidSize
	case Bid:
		contraTotal = book.totalAskSize
	}
	if contraTotal < size {
		return -1, nil, ErrInsufficientLiquidity
	}

	var events []Event
	remaining := size
	for remaining > 0 {
		contraLevels := book.levelsFor(oppositeSide(side))
		contraLevel, ok := contraLevels.Min()
		if !ok {
			break
		}

		tradeSize := min(contraLevel.aggregateSize(), remaining)
		book.insertLimit(side, tradeSize, contraLevel.price, participantID, uuid.New().String())
		events = append(events, book.match()...)
		remaining -= tradeSize
	}

	return 0, events, nil
}

func oppositeSide(side Side) Side {
	if side == Ask {
		return Bid
	}
	return Ask
}

// match is the outer loop over crossing touches; see matchTouch for the
// inner paired iteration over one touch's two price levels.
func (book *OrderBook) match() []Event {
	var events []Event
	for {
		askLevel, askOk := book.asks.Min()
		bidLevel, bidOk := book.bids.Min()
		if !askOk || !bidOk {
			return events
		}
		if bidLevel.price.LessThan(askLevel.price) {
			return events
		}

		events = append(events, book.matchTouch(askLevel, bidLevel)...)

		if askLevel.orders.Len() == 0 {
			book.asks.Delete(askLevel)
		}
		if bidLevel.orders.Len() == 0 {
			book.bids.Delete(bidLevel)
		}
	}
}

// matchTouch pairs every live ask against every live bid at one touch in
// ascending order-id order on both sides, printing every fill at the
// bid-side price recorded when the touch was entered. The inner iteration
// walks both levels' order trees while they are being mutated, so liveness
// is tracked through Order.Size rather than tree membership: an order with
// Size == 0 has already been consumed this pass and is skipped, and actual
// removal from the trees is deferred until the scan completes.
func (book *OrderBook) matchTouch(askLevel, bidLevel *priceLevel) []Event {
	maxBid := bidLevel.price
	var events []Event
	var clearedAsks, clearedBids []uint64

	askLevel.orders.Scan(func(askOrder *Order) bool {
		if askOrder.Size == 0 {
			return true
		}
		bidLevel.orders.Scan(func(bidOrder *Order) bool {
			if askOrder.Size == 0 {
				return false
			}
			if bidOrder.Size == 0 {
				return true
			}

			tradeSize := min(askOrder.Size, bidOrder.Size)
			askOrder.Size -= tradeSize
			bidOrder.Size -= tradeSize

			book.totalAskSize -= tradeSize
			book.totalBidSize -= tradeSize
			book.totalVolumeTraded += tradeSize
			book.totalVolumePending -= 2 * tradeSize

			askOwner, bidOwner := askOrder.ParticipantID, bidOrder.ParticipantID

			if bidOrder.Size == 0 {
				book.removeFromIndices(bidOrder.ID)
				book.clearedOrdersCount++
				clearedBids = append(clearedBids, bidOrder.ID)
			}
			if askOrder.Size == 0 {
				book.removeFromIndices(askOrder.ID)
				book.clearedOrdersCount++
				clearedAsks = append(clearedAsks, askOrder.ID)
			}

			events = append(events,
				NewPublicTradeEvent(tradeSize, maxBid),
				NewPrivateFillEvent(askOrder.ID, tradeSize, maxBid, askOwner, Ask),
				NewPrivateFillEvent(bidOrder.ID, tradeSize, maxBid, bidOwner, Bid),
			)
			return true
		})
		return true
	})

	for _, id := range clearedAsks {
		askLevel.orders.Delete(&Order{ID: id})
	}
	for _, id := range clearedBids {
		bidLevel.orders.Delete(&Order{ID: id})
	}

	return events
}

// removeFromIndices deletes a fully-filled or cancelled order-id from the
// price-id index, the order-owner index, and its participant's live order
// sequence. It does not touch the cleared-orders counter, which only
// counts fills, not cancellations.
func (book *OrderBook) removeFromIndices(orderID uint64) {
	delete(book.priceIndex, orderID)
	owner, ok := book.ownerIndex[orderID]
	if !ok {
		return
	}
	delete(book.ownerIndex, orderID)

	if po, ok := book.participants[owner]; ok {
		po.remove(orderID)
		if len(po.orderIDs) == 0 {
			delete(book.participants, owner)
		}
	}
}

// Cancel removes a resting order from its price level and from every
// other index that referenced it.
func (book *OrderBook) Cancel(orderID uint64) error {
	loc, ok := book.priceIndex[orderID]
	if !ok {
		return ErrUnknownOrder
	}

	levels := book.levelsFor(loc.Side)
	level, ok := levels.Get(&priceLevel{price: loc.Price})
	if !ok {
		return ErrUnknownOrder
	}
	order, ok := level.orders.Get(&Order{ID: orderID})
	if !ok {
		return ErrUnknownOrder
	}

	level.orders.Delete(&Order{ID: orderID})
	if level.orders.Len() == 0 {
		levels.Delete(level)
	}

	switch loc.Side {
	case Ask:
		book.totalAskSize -= order.Size
	case Bid:
		book.totalBidSize -= order.Size
	}
	book.totalVolumePending -= order.Size

	book.removeFromIndices(orderID)
	return nil
}
