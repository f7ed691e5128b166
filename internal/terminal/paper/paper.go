package paper

import (
	"context"
	"fmt"
	"signalbot/internal/logger"
	"signalbot/internal/models"
	"signalbot/internal/terminal"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Feed supplies live prices to a paper terminal that otherwise keeps everything in memory.
type Feed interface {
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	MinVolume(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type pendingOrder struct {
	ticket models.Ticket
	req    models.PlaceOrderRequest
}

// Terminal is an in-memory trading terminal. Orders stay pending until Fill, Cancel or their
// expiration.
type Terminal struct {
	mu         sync.Mutex
	feed       Feed
	quotes     map[string]models.Quote
	minVolume  decimal.Decimal
	nextTicket int64
	pending    map[models.Ticket]pendingOrder
	positions  map[models.Ticket]models.BrokerPosition
	closed     map[models.Ticket]models.CloseReason
	placed     []models.PlaceOrderRequest
	modified   []models.ModifyStopLossRequest
	failures   map[string]error
	log        *logger.Logger
	now        func() time.Time
}

func New(log *logger.Logger, feed Feed) *Terminal {
	if log == nil {
		log = logger.Discard()
	}
	return &Terminal{
		feed:       feed,
		quotes:     make(map[string]models.Quote),
		minVolume:  decimal.RequireFromString("0.01"),
		nextTicket: 1000,
		pending:    make(map[models.Ticket]pendingOrder),
		positions:  make(map[models.Ticket]models.BrokerPosition),
		closed:     make(map[models.Ticket]models.CloseReason),
		failures:   make(map[string]error),
		log:        log,
		now:        time.Now,
	}
}

func (t *Terminal) logEntry() *logrus.Entry {
	return t.log.WithComponent("paper_terminal")
}

func (t *Terminal) SetQuote(symbol string, bid, ask decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quotes[symbol] = models.Quote{Symbol: symbol, Bid: bid, Ask: ask, Time: t.now()}
}

func (t *Terminal) SetMinVolume(volume decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.minVolume = volume
}

// FailNext makes the next call of op return err.
func (t *Terminal) FailNext(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[op] = err
}

func (t *Terminal) takeFailure(op string) error {
	err, ok := t.failures[op]
	if !ok {
		return nil
	}
	delete(t.failures, op)
	return err
}

func (t *Terminal) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (models.Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.takeFailure(terminal.OpPlaceOrder); err != nil {
		return "", err
	}
	if !req.Volume.IsPositive() {
		return "", &terminal.BrokerError{Op: terminal.OpPlaceOrder, Code: 10014, Message: "invalid volume"}
	}
	if !req.EntryPrice.IsPositive() {
		return "", &terminal.BrokerError{Op: terminal.OpPlaceOrder, Code: 10015, Message: "invalid price"}
	}

	t.nextTicket++
	ticket := models.Ticket(strconv.FormatInt(t.nextTicket, 10))
	t.pending[ticket] = pendingOrder{ticket: ticket, req: req}
	t.placed = append(t.placed, req)

	t.logEntry().WithFields(logrus.Fields{
		"ticket": ticket,
		"kind":   req.Kind,
		"side":   req.Direction,
		"price":  req.EntryPrice.String(),
	}).Info("Бумажный ордер размещён.")
	return ticket, nil
}

func (t *Terminal) ModifyStopLoss(ctx context.Context, req models.ModifyStopLossRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.takeFailure(terminal.OpModifyStopLoss); err != nil {
		return err
	}

	if pos, ok := t.positions[req.Ticket]; ok {
		pos.StopLoss = req.NewStopLoss
		t.positions[req.Ticket] = pos
	} else if ord, ok := t.pending[req.Ticket]; ok {
		ord.req.StopLoss = req.NewStopLoss
		t.pending[req.Ticket] = ord
	} else {
		return &terminal.BrokerError{Op: terminal.OpModifyStopLoss, Code: 10013, Message: "ticket not found"}
	}

	t.modified = append(t.modified, req)
	return nil
}

func (t *Terminal) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	t.mu.Lock()
	if err := t.takeFailure(terminal.OpQuote); err != nil {
		t.mu.Unlock()
		return models.Quote{}, err
	}
	quote, ok := t.quotes[symbol]
	feed := t.feed
	t.mu.Unlock()

	if ok {
		return quote, nil
	}
	if feed != nil {
		return feed.Quote(ctx, symbol)
	}
	return models.Quote{}, &terminal.BrokerError{Op: terminal.OpQuote, Code: 10021, Message: fmt.Sprintf("no quotes for %s", symbol)}
}

func (t *Terminal) MinVolume(ctx context.Context, symbol string) (decimal.Decimal, error) {
	t.mu.Lock()
	if err := t.takeFailure(terminal.OpMinVolume); err != nil {
		t.mu.Unlock()
		return decimal.Zero, err
	}
	volume := t.minVolume
	feed := t.feed
	t.mu.Unlock()

	if feed != nil {
		return feed.MinVolume(ctx, symbol)
	}
	return volume, nil
}

func (t *Terminal) BrokerState(ctx context.Context, symbol string) (models.BrokerState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.takeFailure(terminal.OpBrokerState); err != nil {
		return models.BrokerState{}, err
	}

	now := t.now()
	state := models.BrokerState{Closed: make(map[models.Ticket]models.CloseReason), Time: now}

	for ticket, ord := range t.pending {
		if exp := ord.req.Expiration; !exp.IsZero() && !now.Before(exp) {
			delete(t.pending, ticket)
			t.closed[ticket] = models.CloseReasonExpired
			continue
		}
		if symbol != "" && ord.req.Symbol != symbol {
			continue
		}
		state.Pending = append(state.Pending, models.BrokerOrder{
			Ticket:     ticket,
			Symbol:     ord.req.Symbol,
			Price:      ord.req.EntryPrice,
			StopLoss:   ord.req.StopLoss,
			TakeProfit: ord.req.TakeProfit,
		})
	}
	for _, pos := range t.positions {
		if symbol != "" && pos.Symbol != symbol {
			continue
		}
		state.Positions = append(state.Positions, pos)
	}
	for ticket, reason := range t.closed {
		state.Closed[ticket] = reason
	}
	return state, nil
}

// Fill turns a pending order into an open position under the same ticket.
func (t *Terminal) Fill(ticket models.Ticket) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ord, ok := t.pending[ticket]
	if !ok {
		return fmt.Errorf("Ордер %s не найден.", ticket)
	}
	delete(t.pending, ticket)
	t.positions[ticket] = models.BrokerPosition{
		Ticket:     ticket,
		Symbol:     ord.req.Symbol,
		OpenPrice:  ord.req.EntryPrice,
		StopLoss:   ord.req.StopLoss,
		TakeProfit: ord.req.TakeProfit,
	}
	return nil
}

func (t *Terminal) Cancel(ticket models.Ticket) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[ticket]; !ok {
		return fmt.Errorf("Ордер %s не найден.", ticket)
	}
	delete(t.pending, ticket)
	t.closed[ticket] = models.CloseReasonCancelled
	return nil
}

// ClosePosition removes an open position, as a hit TP or SL would.
func (t *Terminal) ClosePosition(ticket models.Ticket) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.positions[ticket]; !ok {
		return fmt.Errorf("Позиция %s не найдена.", ticket)
	}
	delete(t.positions, ticket)
	t.closed[ticket] = models.CloseReasonFilled
	return nil
}

func (t *Terminal) Placed() []models.PlaceOrderRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.PlaceOrderRequest(nil), t.placed...)
}

func (t *Terminal) Modified() []models.ModifyStopLossRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.ModifyStopLossRequest(nil), t.modified...)
}

var _ terminal.Client = (*Terminal)(nil)
