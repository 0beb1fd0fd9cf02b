package book

import "github.com/shopspring/decimal"

// OrderSnapshot is one resting order as carried in a Snapshot.
type OrderSnapshot struct {
	ID            uint64
	UUID          string
	Side          Side
	Price         decimal.Decimal
	Size          uint64
	ParticipantID string
}

// PriceLevelSnapshot is one price level's orders, in ascending order-id
// (time priority) order.
type PriceLevelSnapshot struct {
	Price  decimal.Decimal
	Orders []OrderSnapshot
}

// Snapshot is the book's complete state: the five indices
// plus the six monitoring counters, as a closed set of exported fields any
// external serializer can encode and later feed back to Restore.
type Snapshot struct {
	Ticker       string
	Asks         []PriceLevelSnapshot
	Bids         []PriceLevelSnapshot
	PriceIndex   map[uint64]orderLocation
	OwnerIndex   map[uint64]string
	Participants map[string][]uint64

	TotalAskSize       uint64
	TotalBidSize       uint64
	TotalVolumeTraded  uint64
	TotalVolumePending uint64
	LastOrderID        uint64
	ClearedOrdersCount uint64
}

func (lvl *priceLevel) toSnapshot() PriceLevelSnapshot {
	snap := PriceLevelSnapshot{Price: lvl.price, Orders: make([]OrderSnapshot, 0, lvl.orders.Len())}
	lvl.orders.Scan(func(order *Order) bool {
		snap.Orders = append(snap.Orders, OrderSnapshot{
			ID:            order.ID,
			UUID:          order.UUID,
			Side:          order.Side,
			Price:         order.Price,
			Size:          order.Size,
			ParticipantID: order.ParticipantID,
		})
		return true
	})
	return snap
}

// Snapshot captures the book's current state. The returned value shares no
// mutable state with the book: further mutation of the book does not
// retroactively change a previously taken Snapshot.
func (book *OrderBook) Snapshot() Snapshot {
	snap := Snapshot{
		Ticker:             book.ticker,
		PriceIndex:         make(map[uint64]orderLocation, len(book.priceIndex)),
		OwnerIndex:         make(map[uint64]string, len(book.ownerIndex)),
		Participants:       make(map[string][]uint64, len(book.participants)),
		TotalAskSize:       book.totalAskSize,
		TotalBidSize:       book.totalBidSize,
		TotalVolumeTraded:  book.totalVolumeTraded,
		TotalVolumePending: book.totalVolumePending,
		LastOrderID:        book.lastOrderID,
		ClearedOrdersCount: book.clearedOrdersCount,
	}

	book.asks.Scan(func(level *priceLevel) bool {
		snap.Asks = append(snap.Asks, level.toSnapshot())
		return true
	})
	book.bids.Scan(func(level *priceLevel) bool {
		snap.Bids = append(snap.Bids, level.toSnapshot())
		return true
	})
	for id, loc := range book.priceIndex {
		snap.PriceIndex[id] = loc
	}
	for id, owner := range book.ownerIndex {
		snap.OwnerIndex[id] = owner
	}
	for owner, po := range book.participants {
		snap.Participants[owner] = append([]uint64(nil), po.orderIDs...)
	}

	return snap
}

// Restore rebuilds a book from a Snapshot produced by Snapshot.
// GetMarketDepth at any depth on the returned book matches what the
// snapshotted book would have returned.
func Restore(snap Snapshot) *OrderBook {
	book := New(snap.Ticker)

	for _, lvl := range snap.Asks {
		book.restoreLevel(Ask, lvl)
	}
	for _, lvl := range snap.Bids {
		book.restoreLevel(Bid, lvl)
	}

	for id, loc := range snap.PriceIndex {
		book.priceIndex[id] = loc
	}
	for id, owner := range snap.OwnerIndex {
		book.ownerIndex[id] = owner
	}
	for owner, ids := range snap.Participants {
		book.participants[owner] = &participantOrders{orderIDs: append([]uint64(nil), ids...)}
	}

	book.totalAskSize = snap.TotalAskSize
	book.totalBidSize = snap.TotalBidSize
	book.totalVolumeTraded = snap.TotalVolumeTraded
	book.totalVolumePending = snap.TotalVolumePending
	book.lastOrderID = snap.LastOrderID
	book.clearedOrdersCount = snap.ClearedOrdersCount

	return book
}

func (book *OrderBook) restoreLevel(side Side, snap PriceLevelSnapshot) {
	level := newPriceLevel(snap.Price)
	for _, o := range snap.Orders {
		level.orders.Set(&Order{
			ID:            o.ID,
			UUID:          o.UUID,
			Side:          o.Side,
			Price:         o.Price,
			Size:          o.Size,
			ParticipantID: o.ParticipantID,
		})
	}
	book.levelsFor(side).Set(level)
}
