package book

import "github.com/shopspring/decimal"

// PriceSentinel is returned by Ask/Bid when the requested side is empty.
var PriceSentinel = decimal.NewFromInt(-1)

// DepthLevel is one aggregated price level as reported by GetMarketDepth.
type DepthLevel struct {
	Price decimal.Decimal
	Size  uint64
}

// OrderDetail is the (price, side, remaining size) tuple returned for each
// order-id by GetParticipantOrders.
type OrderDetail struct {
	Price decimal.Decimal
	Side  Side
	Size  uint64
}

// GetMarketDepth returns up to depth aggregated price levels per side: asks
// ascending from the best ask, bids descending from the best bid.
func (book *OrderBook) GetMarketDepth(depth int) ([]DepthLevel, []DepthLevel) {
	asks := make([]DepthLevel, 0, depth)
	book.asks.Scan(func(level *priceLevel) bool {
		if len(asks) >= depth {
			return false
		}
		asks = append(asks, DepthLevel{Price: level.price, Size: level.aggregateSize()})
		return true
	})

	bids := make([]DepthLevel, 0, depth)
	book.bids.Scan(func(level *priceLevel) bool {
		if len(bids) >= depth {
			return false
		}
		bids = append(bids, DepthLevel{Price: level.price, Size: level.aggregateSize()})
		return true
	})

	return asks, bids
}

// AskSize is the aggregate resting size at the best ask, or 0 if the ask
// side is empty.
func (book *OrderBook) AskSize() uint64 {
	asks, _ := book.GetMarketDepth(1)
	if len(asks) == 0 {
		return 0
	}
	return asks[0].Size
}

// BidSize is the aggregate resting size at the best bid, or 0 if the bid
// side is empty.
func (book *OrderBook) BidSize() uint64 {
	_, bids := book.GetMarketDepth(1)
	if len(bids) == 0 {
		return 0
	}
	return bids[0].Size
}

// TotalAskSize is the sum of remaining sizes across the entire ask side.
func (book *OrderBook) TotalAskSize() uint64 { return book.totalAskSize }

// TotalBidSize is the sum of remaining sizes across the entire bid side.
func (book *OrderBook) TotalBidSize() uint64 { return book.totalBidSize }

// TotalVolumeTraded is the cumulative size matched over the book's lifetime.
func (book *OrderBook) TotalVolumeTraded() uint64 { return book.totalVolumeTraded }

// TotalVolumePending is the size still resting on both sides combined.
func (book *OrderBook) TotalVolumePending() uint64 { return book.totalVolumePending }

// ClearedOrdersCount is the number of orders fully filled over the book's
// lifetime (cancellations are not counted).
func (book *OrderBook) ClearedOrdersCount() uint64 { return book.clearedOrdersCount }

// Ask is the best ask price, or PriceSentinel if the ask side is empty.
func (book *OrderBook) Ask() decimal.Decimal {
	level, ok := book.asks.Min()
	if !ok {
		return PriceSentinel
	}
	return level.price
}

// Bid is the best bid price, or PriceSentinel if the bid side is empty.
func (book *OrderBook) Bid() decimal.Decimal {
	level, ok := book.bids.Min()
	if !ok {
		return PriceSentinel
	}
	return level.price
}

// Spread is Ask minus Bid; meaningful only when both sides are non-empty.
func (book *OrderBook) Spread() decimal.Decimal {
	return book.Ask().Sub(book.Bid())
}

// GetParticipantOrders returns a participant's live order-ids in
// submission order, plus the (price, side, size) detail for each.
func (book *OrderBook) GetParticipantOrders(participantID string) ([]uint64, map[uint64]OrderDetail) {
	po, ok := book.participants[participantID]
	if !ok {
		return nil, map[uint64]OrderDetail{}
	}

	orderIDs := append([]uint64(nil), po.orderIDs...)
	details := make(map[uint64]OrderDetail, len(orderIDs))
	for _, id := range orderIDs {
		loc := book.priceIndex[id]
		size := book.orderSize(id, loc)
		details[id] = OrderDetail{Price: loc.Price, Side: loc.Side, Size: size}
	}
	return orderIDs, details
}

func (book *OrderBook) orderSize(orderID uint64, loc orderLocation) uint64 {
	levels := book.levelsFor(loc.Side)
	level, ok := levels.Get(&priceLevel{price: loc.Price})
	if !ok {
		return 0
	}
	order, ok := level.orders.Get(&Order{ID: orderID})
	if !ok {
		return 0
	}
	return order.Size
}
