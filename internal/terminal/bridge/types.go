package bridge

import (
	"encoding/json"
	"signalbot/internal/logger"
	"signalbot/internal/models"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type Client struct {
	cfg Config
	log *logger.Logger

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan result

	stopCh   chan struct{}
	stopOnce sync.Once
}

type Config struct {
	URL            string
	ApiKey         string
	Magic          int64
	Comment        string
	RequestTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration
}

type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type result struct {
	resp Response
	err  error
}

type authParams struct {
	Expires   int64  `json:"expires"`
	Signature string `json:"signature"`
}

type symbolParams struct {
	Symbol string `json:"symbol"`
	Magic  int64  `json:"magic,omitempty"`
}

// placeOrderParams mirrors an MT5 pending-order request. Zero TP or expiration are omitted.
type placeOrderParams struct {
	Symbol     string           `json:"symbol"`
	Type       string           `json:"type"`
	Volume     decimal.Decimal  `json:"volume"`
	Price      decimal.Decimal  `json:"price"`
	StopLoss   decimal.Decimal  `json:"sl"`
	TakeProfit *decimal.Decimal `json:"tp,omitempty"`
	Expiration int64            `json:"expiration,omitempty"`
	Magic      int64            `json:"magic"`
	Comment    string           `json:"comment,omitempty"`
}

type placeOrderResult struct {
	Ticket models.Ticket `json:"ticket"`
}

type modifyParams struct {
	Ticket   models.Ticket   `json:"ticket"`
	StopLoss decimal.Decimal `json:"sl"`
	Position bool            `json:"position"`
}

type quoteResult struct {
	Bid  decimal.Decimal `json:"bid"`
	Ask  decimal.Decimal `json:"ask"`
	Time int64           `json:"time"`
}

type symbolInfoResult struct {
	VolumeMin decimal.Decimal `json:"volume_min"`
}

type stateResult struct {
	Orders    []models.BrokerOrder    `json:"orders"`
	Positions []models.BrokerPosition `json:"positions"`
	History   []closedTicket          `json:"history"`
	Time      int64                   `json:"time"`
}

type closedTicket struct {
	Ticket models.Ticket      `json:"ticket"`
	Reason models.CloseReason `json:"reason"`
}
