package book

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EventKind discriminates a public tape print from a private per-order fill.
type EventKind int

const (
	PublicTrade EventKind = iota
	PrivateFill
)

// Event is one entry on the trade-event list a submission's match appends
// to. Public trades only populate Size and Price; private fills populate
// OrderID, Size, Price, ParticipantID and Side.
type Event struct {
	Kind          EventKind
	OrderID       uint64
	Size          uint64
	Price         decimal.Decimal
	ParticipantID string
	Side          Side
}

// NewPublicTradeEvent is the tape print for one match: (0, size, price).
func NewPublicTradeEvent(size uint64, price decimal.Decimal) Event {
	return Event{Kind: PublicTrade, Size: size, Price: price}
}

// NewPrivateFillEvent is the owner-directed fill report for one side of a
// match: (1, order_id, size, price, participant_id, side).
func NewPrivateFillEvent(orderID uint64, size uint64, price decimal.Decimal, participantID string, side Side) Event {
	return Event{
		Kind:          PrivateFill,
		OrderID:       orderID,
		Size:          size,
		Price:         price,
		ParticipantID: participantID,
		Side:          side,
	}
}

func (e Event) String() string {
	if e.Kind == PublicTrade {
		return fmt.Sprintf("trade size=%d price=%s", e.Size, e.Price)
	}
	return fmt.Sprintf("fill order=%d size=%d price=%s participant=%s side=%s",
		e.OrderID, e.Size, e.Price, e.ParticipantID, e.Side)
}
