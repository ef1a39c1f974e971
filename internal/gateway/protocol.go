// Package gateway is an external collaborator: a small TCP front end that
// translates a binary wire protocol into calls against the engine's public
// surface. It is not part of the matching engine's tested core contract,
// and the engine never depends on it, but it is how a real deployment
// would actually reach the book.
package gateway

import (
	"encoding/binary"
	"errors"
	"fmt"

	"limitbook/internal/domain"
)

type MessageType uint8

const (
	MsgNewOrder MessageType = iota
	MsgCancelOrder
	MsgModifyOrder
)

type ReportType uint8

const (
	ReportAck ReportType = iota
	ReportTrade
	ReportError
)

var (
	ErrMessageTooShort = errors.New("gateway: message too short")
	ErrUnknownMessage  = errors.New("gateway: unknown message type")
)

// Wire layout, all big endian:
//   NewOrder:    type(1) id(4) side(1) orderType(1) price(4) qty(4)           = 15 bytes
//   CancelOrder: type(1) id(4)                                                = 5 bytes
//   ModifyOrder: type(1) id(4) side(1) price(4) qty(4)                        = 14 bytes

const (
	newOrderLen    = 15
	cancelOrderLen = 5
	modifyOrderLen = 14
)

type NewOrderMessage struct {
	ID    domain.OrderId
	Side  domain.Side
	Type  domain.OrderType
	Price domain.Price
	Qty   domain.Quantity
}

type CancelOrderMessage struct {
	ID domain.OrderId
}

type ModifyOrderMessage struct {
	ID    domain.OrderId
	Side  domain.Side
	Price domain.Price
	Qty   domain.Quantity
}

// ParseMessage decodes exactly one framed message from buf.
func ParseMessage(buf []byte) (any, error) {
	if len(buf) < 1 {
		return nil, ErrMessageTooShort
	}
	switch MessageType(buf[0]) {
	case MsgNewOrder:
		if len(buf) < newOrderLen {
			return nil, ErrMessageTooShort
		}
		return NewOrderMessage{
			ID:    domain.OrderId(binary.BigEndian.Uint32(buf[1:5])),
			Side:  domain.Side(buf[5]),
			Type:  domain.OrderType(buf[6]),
			Price: domain.Price(binary.BigEndian.Uint32(buf[7:11])),
			Qty:   domain.Quantity(binary.BigEndian.Uint32(buf[11:15])),
		}, nil
	case MsgCancelOrder:
		if len(buf) < cancelOrderLen {
			return nil, ErrMessageTooShort
		}
		return CancelOrderMessage{ID: domain.OrderId(binary.BigEndian.Uint32(buf[1:5]))}, nil
	case MsgModifyOrder:
		if len(buf) < modifyOrderLen {
			return nil, ErrMessageTooShort
		}
		return ModifyOrderMessage{
			ID:    domain.OrderId(binary.BigEndian.Uint32(buf[1:5])),
			Side:  domain.Side(buf[5]),
			Price: domain.Price(binary.BigEndian.Uint32(buf[6:10])),
			Qty:   domain.Quantity(binary.BigEndian.Uint32(buf[10:14])),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, buf[0])
	}
}

// TradeReport serializes a single trade leg's worth of report: report
// type, the order id this report is addressed to, the counterparty's id,
// price and matched quantity.
type TradeReport struct {
	Type         ReportType
	OrderID      domain.OrderId
	Counterparty domain.OrderId
	Price        domain.Price
	Quantity     domain.Quantity
}

func (r TradeReport) Serialize() []byte {
	buf := make([]byte, 17)
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint32(buf[1:5], uint32(r.OrderID))
	binary.BigEndian.PutUint32(buf[5:9], uint32(r.Counterparty))
	binary.BigEndian.PutUint32(buf[9:13], uint32(r.Price))
	binary.BigEndian.PutUint32(buf[13:17], uint32(r.Quantity))
	return buf
}

// TradeReportsFor expands a matched trade into the two reports addressed to
// each leg's owner.
func TradeReportsFor(trade domain.Trade) (bidReport, askReport TradeReport) {
	bidReport = TradeReport{
		Type:         ReportTrade,
		OrderID:      trade.Bid.OrderID,
		Counterparty: trade.Ask.OrderID,
		Price:        trade.Bid.Price,
		Quantity:     trade.Bid.Quantity,
	}
	askReport = TradeReport{
		Type:         ReportTrade,
		OrderID:      trade.Ask.OrderID,
		Counterparty: trade.Bid.OrderID,
		Price:        trade.Ask.Price,
		Quantity:     trade.Ask.Quantity,
	}
	return
}

func AckReport() []byte {
	return []byte{byte(ReportAck)}
}

func ErrorReport(msg string) []byte {
	buf := make([]byte, 1+len(msg))
	buf[0] = byte(ReportError)
	copy(buf[1:], msg)
	return buf
}
