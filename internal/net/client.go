package net

import (
	"encoding/binary"
	"net"

	"github.com/shopspring/decimal"

	"ledgerbook/internal/book"
	"ledgerbook/internal/common"
)

// SendNewOrder writes a submit_order request frame to conn.
func SendNewOrder(conn net.Conn, ticker string, orderType common.OrderType, side book.Side, price decimal.Decimal, size uint64, participantID string) error {
	_, err := conn.Write(encodeNewOrder(ticker, orderType, side, price, size, participantID))
	return err
}

// SendCancelOrder writes a cancel request frame to conn.
func SendCancelOrder(conn net.Conn, ticker string, orderID uint64) error {
	_, err := conn.Write(encodeCancelOrder(ticker, orderID))
	return err
}

// SendGetDepth writes a get_mkt_depth request frame to conn.
func SendGetDepth(conn net.Conn, ticker string, depth int) error {
	_, err := conn.Write(encodeGetDepth(ticker, depth))
	return err
}

// SendGetParticipantOrders writes a get_participant_orders request frame to
// conn.
func SendGetParticipantOrders(conn net.Conn, ticker, participantID string) error {
	_, err := conn.Write(encodeGetParticipantOrders(ticker, participantID))
	return err
}

// SendLogBook writes a log-book request frame to conn.
func SendLogBook(conn net.Conn) error {
	buf := make([]byte, BaseMessageHeaderLen)
	binary.BigEndian.PutUint16(buf, uint16(LogBook))
	_, err := conn.Write(buf)
	return err
}
