package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string
type OrderKind string
type OrderStatus string
type CloseReason string
type Ticket string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"

	OrderKindLimit OrderKind = "LIMIT"
	OrderKindStop  OrderKind = "STOP"

	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusActivePosition OrderStatus = "ACTIVE_POSITION"
	OrderStatusFilled         OrderStatus = "FILLED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
	OrderStatusExpired        OrderStatus = "EXPIRED"

	CloseReasonFilled    CloseReason = "FILLED"
	CloseReasonCancelled CloseReason = "CANCELLED"
	CloseReasonExpired   CloseReason = "EXPIRED"
)

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

func (r CloseReason) Status() OrderStatus {
	switch r {
	case CloseReasonFilled:
		return OrderStatusFilled
	case CloseReasonExpired:
		return OrderStatusExpired
	default:
		return OrderStatusCancelled
	}
}

// TradeSignal is one parsed pending-order intent. EntryLow <= EntryHigh always holds.
type TradeSignal struct {
	ID                   string            `json:"id"`
	Direction            Direction         `json:"direction"`
	EntryLow             decimal.Decimal   `json:"entry_low"`
	EntryHigh            decimal.Decimal   `json:"entry_high"`
	StopLoss             decimal.Decimal   `json:"stop_loss"`
	TakeProfitCandidates []decimal.Decimal `json:"take_profit_candidates"`
	RawText              string            `json:"raw_text"`
	ReceivedAt           time.Time         `json:"received_at"`
}

func (s TradeSignal) IsRange() bool {
	return !s.EntryLow.Equal(s.EntryHigh)
}

type SLUpdate struct {
	NewStopLoss decimal.Decimal `json:"new_stop_loss"`
	RawText     string          `json:"raw_text"`
}

type ResolvedOrder struct {
	Symbol     string          `json:"symbol"`
	Direction  Direction       `json:"direction"`
	Kind       OrderKind       `json:"kind"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Volume     decimal.Decimal `json:"volume"`
	Expiration time.Time       `json:"expiration,omitempty"`
}

type TrackedOrder struct {
	Ticket       Ticket          `json:"ticket"`
	Status       OrderStatus     `json:"status"`
	Signal       TradeSignal     `json:"signal"`
	Resolved     ResolvedOrder   `json:"resolved"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
	RegisteredAt time.Time       `json:"registered_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type PlaceOrderRequest struct {
	Symbol     string          `json:"symbol"`
	Kind       OrderKind       `json:"kind"`
	Direction  Direction       `json:"direction"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
	Volume     decimal.Decimal `json:"volume"`
	Expiration time.Time       `json:"expiration,omitempty"`
}

type ModifyStopLossRequest struct {
	Ticket      Ticket          `json:"ticket"`
	NewStopLoss decimal.Decimal `json:"new_stop_loss"`
	Position    bool            `json:"position"`
}

type Quote struct {
	Symbol string          `json:"symbol"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	Time   time.Time       `json:"time"`
}

type BrokerOrder struct {
	Ticket     Ticket          `json:"ticket"`
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
}

type BrokerPosition struct {
	Ticket     Ticket          `json:"ticket"`
	Symbol     string          `json:"symbol"`
	OpenPrice  decimal.Decimal `json:"open_price"`
	StopLoss   decimal.Decimal `json:"stop_loss"`
	TakeProfit decimal.Decimal `json:"take_profit"`
}

// BrokerState is the terminal's authoritative view. Closed carries the terminal reason for
// tickets that left the pending/position lists, when the terminal knows it.
type BrokerState struct {
	Pending   []BrokerOrder          `json:"pending"`
	Positions []BrokerPosition       `json:"positions"`
	Closed    map[Ticket]CloseReason `json:"closed,omitempty"`
	Time      time.Time              `json:"time"`
}
