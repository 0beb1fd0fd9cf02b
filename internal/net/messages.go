// Package net implements the TCP wire protocol and server that expose an
// engine.Engine to remote clients. Tickers, prices and participant ids are
// carried as length-prefixed strings so multi-instrument routing and
// decimal price precision both survive the wire.
package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ledgerbook/internal/book"
	"ledgerbook/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

// MessageType identifies an inbound client request.
type MessageType int

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
	GetDepth
	GetParticipantOrders
)

// ReportMessageType identifies an outbound server report.
type ReportMessageType int

const (
	ExecutionReport ReportMessageType = iota
	ErrorReport
	DepthReport
	ParticipantOrdersReport
)

// Message is any parsed inbound request.
type Message interface {
	GetType() MessageType
}

// BaseMessageHeaderLen is the 2-byte MessageType header every request opens
// with.
const BaseMessageHeaderLen = 2

// BaseMessage carries the common header.
type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

// parseMessage dispatches on the leading 2-byte MessageType.
func parseMessage(msg []byte) (Message, error) {
	if len(msg) < BaseMessageHeaderLen {
		return BaseMessage{}, ErrMessageTooShort
	}

	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case NewOrder:
		return parseNewOrder(body)
	case CancelOrder:
		return parseCancelOrder(body)
	case LogBook:
		return BaseMessage{TypeOf: LogBook}, nil
	case GetDepth:
		return parseGetDepth(body)
	case GetParticipantOrders:
		return parseGetParticipantOrders(body)
	default:
		return BaseMessage{}, ErrInvalidMessageType
	}
}

// readLenPrefixedString reads a 2-byte big-endian length followed by that
// many bytes of UTF-8 text, returning the remainder of buf after it.
func readLenPrefixedString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, ErrMessageTooShort
	}
	return string(buf[:n]), buf[n:], nil
}

func putLenPrefixedString(s string) []byte {
	buf := make([]byte, 2+len(s))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(s)))
	copy(buf[2:], s)
	return buf
}

// NewOrderMessage carries a submit_order request: a ticker, an
// order type, a side, a size, a decimal price (ignored for market orders)
// and the submitting participant's id.
type NewOrderMessage struct {
	BaseMessage
	Ticker        string
	OrderType     common.OrderType
	Side          book.Side
	Price         decimal.Decimal
	Size          uint64
	ParticipantID string
}

// NewOrderMessageFixedLen is the fixed portion: 2 (order type) + 1 (side) +
// 8 (size), before the three length-prefixed strings (ticker, price,
// participant id).
const NewOrderMessageFixedLen = 2 + 1 + 8

func parseNewOrder(msg []byte) (NewOrderMessage, error) {
	m := NewOrderMessage{BaseMessage: BaseMessage{TypeOf: NewOrder}}
	if len(msg) < NewOrderMessageFixedLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	orderType, err := common.ParseOrderType(orderTypeName(binary.BigEndian.Uint16(msg[0:2])))
	if err != nil {
		return NewOrderMessage{}, err
	}
	m.OrderType = orderType
	m.Side = book.Side(msg[2])
	m.Size = binary.BigEndian.Uint64(msg[3:11])
	rest := msg[11:]

	var priceStr string
	m.Ticker, rest, err = readLenPrefixedString(rest)
	if err != nil {
		return NewOrderMessage{}, err
	}
	priceStr, rest, err = readLenPrefixedString(rest)
	if err != nil {
		return NewOrderMessage{}, err
	}
	if priceStr == "" {
		m.Price = decimal.Zero
	} else {
		m.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return NewOrderMessage{}, fmt.Errorf("invalid price %q: %w", priceStr, err)
		}
	}
	m.ParticipantID, _, err = readLenPrefixedString(rest)
	if err != nil {
		return NewOrderMessage{}, err
	}

	return m, nil
}

func orderTypeName(code uint16) string {
	if code == 1 {
		return "mkt"
	}
	return "lmt"
}

// encodeNewOrder is used by the CLI client to build a request frame.
func encodeNewOrder(ticker string, orderType common.OrderType, side book.Side, price decimal.Decimal, size uint64, participantID string) []byte {
	typeCode := uint16(0)
	if orderType == common.MarketOrder {
		typeCode = 1
	}

	fixed := make([]byte, 2+NewOrderMessageFixedLen)
	binary.BigEndian.PutUint16(fixed[0:2], uint16(NewOrder))
	binary.BigEndian.PutUint16(fixed[2:4], typeCode)
	fixed[4] = byte(side)
	binary.BigEndian.PutUint64(fixed[5:13], size)

	priceStr := ""
	if orderType == common.LimitOrder {
		priceStr = price.String()
	}

	buf := append(fixed, putLenPrefixedString(ticker)...)
	buf = append(buf, putLenPrefixedString(priceStr)...)
	buf = append(buf, putLenPrefixedString(participantID)...)
	return buf
}

// CancelOrderMessage carries a cancel request.
type CancelOrderMessage struct {
	BaseMessage
	Ticker  string
	OrderID uint64
}

func parseCancelOrder(msg []byte) (CancelOrderMessage, error) {
	m := CancelOrderMessage{BaseMessage: BaseMessage{TypeOf: CancelOrder}}
	if len(msg) < 8 {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	m.OrderID = binary.BigEndian.Uint64(msg[0:8])
	ticker, _, err := readLenPrefixedString(msg[8:])
	if err != nil {
		return CancelOrderMessage{}, err
	}
	m.Ticker = ticker
	return m, nil
}

func encodeCancelOrder(ticker string, orderID uint64) []byte {
	buf := make([]byte, 2+8)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrder))
	binary.BigEndian.PutUint64(buf[2:10], orderID)
	return append(buf, putLenPrefixedString(ticker)...)
}

// GetDepthMessage carries a get_mkt_depth query.
type GetDepthMessage struct {
	BaseMessage
	Ticker string
	Depth  int
}

func parseGetDepth(msg []byte) (GetDepthMessage, error) {
	m := GetDepthMessage{BaseMessage: BaseMessage{TypeOf: GetDepth}}
	if len(msg) < 4 {
		return GetDepthMessage{}, ErrMessageTooShort
	}
	m.Depth = int(binary.BigEndian.Uint32(msg[0:4]))
	ticker, _, err := readLenPrefixedString(msg[4:])
	if err != nil {
		return GetDepthMessage{}, err
	}
	m.Ticker = ticker
	return m, nil
}

func encodeGetDepth(ticker string, depth int) []byte {
	buf := make([]byte, 2+4)
	binary.BigEndian.PutUint16(buf[0:2], uint16(GetDepth))
	binary.BigEndian.PutUint32(buf[2:6], uint32(depth))
	return append(buf, putLenPrefixedString(ticker)...)
}

// GetParticipantOrdersMessage carries a get_participant_orders query.
type GetParticipantOrdersMessage struct {
	BaseMessage
	Ticker        string
	ParticipantID string
}

func parseGetParticipantOrders(msg []byte) (GetParticipantOrdersMessage, error) {
	m := GetParticipantOrdersMessage{BaseMessage: BaseMessage{TypeOf: GetParticipantOrders}}
	ticker, rest, err := readLenPrefixedString(msg)
	if err != nil {
		return GetParticipantOrdersMessage{}, err
	}
	participantID, _, err := readLenPrefixedString(rest)
	if err != nil {
		return GetParticipantOrdersMessage{}, err
	}
	m.Ticker = ticker
	m.ParticipantID = participantID
	return m, nil
}

func encodeGetParticipantOrders(ticker, participantID string) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf[0:2], uint16(GetParticipantOrders))
	buf = append(buf, putLenPrefixedString(ticker)...)
	buf = append(buf, putLenPrefixedString(participantID)...)
	return buf
}

// Report is an outbound execution/error/depth/participant-orders report.
// Each MessageType serializes only the fields relevant to it.
type Report struct {
	MessageType ReportMessageType

	// ExecutionReport / ErrorReport fields.
	Side         book.Side
	Size         uint64
	Price        decimal.Decimal
	Ticker       string
	OrderID      uint64
	Counterparty string
	Err          string

	// DepthReport fields.
	AskLevels []book.DepthLevel
	BidLevels []book.DepthLevel

	// ParticipantOrdersReport fields.
	OrderIDs     []uint64
	OrderDetails map[uint64]book.OrderDetail
}

// Serialize converts the report to its wire form.
func (r *Report) Serialize() []byte {
	switch r.MessageType {
	case DepthReport:
		return r.serializeDepth()
	case ParticipantOrdersReport:
		return r.serializeParticipantOrders()
	default:
		return r.serializeExecution()
	}
}

func (r *Report) serializeExecution() []byte {
	fixed := make([]byte, 1+1+8+8)
	fixed[0] = byte(r.MessageType)
	fixed[1] = byte(r.Side)
	binary.BigEndian.PutUint64(fixed[2:10], r.Size)
	binary.BigEndian.PutUint64(fixed[10:18], r.OrderID)

	buf := append(fixed, putLenPrefixedString(r.Ticker)...)
	buf = append(buf, putLenPrefixedString(r.Price.String())...)
	buf = append(buf, putLenPrefixedString(r.Counterparty)...)
	buf = append(buf, putLenPrefixedString(r.Err)...)
	return buf
}

func putLevels(levels []book.DepthLevel) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(levels)))
	for _, lvl := range levels {
		buf = append(buf, putLenPrefixedString(lvl.Price.String())...)
		sizeBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(sizeBuf, lvl.Size)
		buf = append(buf, sizeBuf...)
	}
	return buf
}

func readLevels(buf []byte) ([]book.DepthLevel, []byte, error) {
	if len(buf) < 2 {
		return nil, nil, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]

	levels := make([]book.DepthLevel, 0, n)
	for i := 0; i < n; i++ {
		priceStr, rest, err := readLenPrefixedString(buf)
		if err != nil {
			return nil, nil, err
		}
		if len(rest) < 8 {
			return nil, nil, ErrMessageTooShort
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid level price %q: %w", priceStr, err)
		}
		size := binary.BigEndian.Uint64(rest[0:8])
		levels = append(levels, book.DepthLevel{Price: price, Size: size})
		buf = rest[8:]
	}
	return levels, buf, nil
}

func (r *Report) serializeDepth() []byte {
	buf := []byte{byte(r.MessageType)}
	buf = append(buf, putLenPrefixedString(r.Ticker)...)
	buf = append(buf, putLevels(r.AskLevels)...)
	buf = append(buf, putLevels(r.BidLevels)...)
	return buf
}

func parseDepthReport(msg []byte) (Report, error) {
	r := Report{MessageType: DepthReport}
	ticker, rest, err := readLenPrefixedString(msg)
	if err != nil {
		return Report{}, err
	}
	r.Ticker = ticker

	r.AskLevels, rest, err = readLevels(rest)
	if err != nil {
		return Report{}, err
	}
	r.BidLevels, _, err = readLevels(rest)
	if err != nil {
		return Report{}, err
	}
	return r, nil
}

func (r *Report) serializeParticipantOrders() []byte {
	buf := []byte{byte(r.MessageType)}
	buf = append(buf, putLenPrefixedString(r.Counterparty)...)

	countBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(countBuf, uint16(len(r.OrderIDs)))
	buf = append(buf, countBuf...)

	for _, id := range r.OrderIDs {
		detail := r.OrderDetails[id]
		idBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(idBuf, id)
		buf = append(buf, idBuf...)
		buf = append(buf, putLenPrefixedString(detail.Price.String())...)
		buf = append(buf, byte(detail.Side))
		sizeBuf := make([]byte, 8)
		binary.BigEndian.PutUint64(sizeBuf, detail.Size)
		buf = append(buf, sizeBuf...)
	}
	return buf
}

func parseParticipantOrdersReport(msg []byte) (Report, error) {
	r := Report{MessageType: ParticipantOrdersReport, OrderDetails: map[uint64]book.OrderDetail{}}
	participantID, rest, err := readLenPrefixedString(msg)
	if err != nil {
		return Report{}, err
	}
	r.Counterparty = participantID

	if len(rest) < 2 {
		return Report{}, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint16(rest[0:2]))
	rest = rest[2:]

	for i := 0; i < n; i++ {
		if len(rest) < 8 {
			return Report{}, ErrMessageTooShort
		}
		id := binary.BigEndian.Uint64(rest[0:8])
		rest = rest[8:]

		priceStr, after, err := readLenPrefixedString(rest)
		if err != nil {
			return Report{}, err
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return Report{}, fmt.Errorf("invalid order price %q: %w", priceStr, err)
		}
		if len(after) < 9 {
			return Report{}, ErrMessageTooShort
		}
		side := book.Side(after[0])
		size := binary.BigEndian.Uint64(after[1:9])
		rest = after[9:]

		r.OrderIDs = append(r.OrderIDs, id)
		r.OrderDetails[id] = book.OrderDetail{Price: price, Side: side, Size: size}
	}
	return r, nil
}

// ParseReport decodes a Report frame as received off the wire by a client.
func ParseReport(msg []byte) (Report, error) {
	if len(msg) < 1 {
		return Report{}, ErrMessageTooShort
	}
	switch ReportMessageType(msg[0]) {
	case DepthReport:
		return parseDepthReport(msg[1:])
	case ParticipantOrdersReport:
		return parseParticipantOrdersReport(msg[1:])
	default:
		return parseExecutionReport(msg)
	}
}

func parseExecutionReport(msg []byte) (Report, error) {
	if len(msg) < 1+1+8+8 {
		return Report{}, ErrMessageTooShort
	}
	r := Report{
		MessageType: ReportMessageType(msg[0]),
		Side:        book.Side(msg[1]),
		Size:        binary.BigEndian.Uint64(msg[2:10]),
		OrderID:     binary.BigEndian.Uint64(msg[10:18]),
	}
	rest := msg[18:]

	ticker, rest, err := readLenPrefixedString(rest)
	if err != nil {
		return Report{}, err
	}
	r.Ticker = ticker

	priceStr, rest, err := readLenPrefixedString(rest)
	if err != nil {
		return Report{}, err
	}
	if priceStr != "" {
		r.Price, err = decimal.NewFromString(priceStr)
		if err != nil {
			return Report{}, fmt.Errorf("invalid report price %q: %w", priceStr, err)
		}
	}

	counterparty, rest, err := readLenPrefixedString(rest)
	if err != nil {
		return Report{}, err
	}
	r.Counterparty = counterparty

	errStr, _, err := readLenPrefixedString(rest)
	if err != nil {
		return Report{}, err
	}
	r.Err = errStr

	return r, nil
}

// newExecutionReport builds the report sent to one side of a fill.
func newExecutionReport(ticker string, ev book.Event, counterparty string) Report {
	return Report{
		MessageType:  ExecutionReport,
		Side:         ev.Side,
		Size:         ev.Size,
		Price:        ev.Price,
		Ticker:       ticker,
		OrderID:      ev.OrderID,
		Counterparty: counterparty,
	}
}

func newErrorReport(err error) Report {
	return Report{MessageType: ErrorReport, Err: err.Error()}
}

// newDepthReport builds the response to a get_mkt_depth query.
func newDepthReport(ticker string, asks, bids []book.DepthLevel) Report {
	return Report{MessageType: DepthReport, Ticker: ticker, AskLevels: asks, BidLevels: bids}
}

// newParticipantOrdersReport builds the response to a get_participant_orders
// query.
func newParticipantOrdersReport(participantID string, orderIDs []uint64, details map[uint64]book.OrderDetail) Report {
	return Report{
		MessageType:  ParticipantOrdersReport,
		Counterparty: participantID,
		OrderIDs:     orderIDs,
		OrderDetails: details,
	}
}
