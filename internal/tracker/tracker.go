package tracker

import (
	"errors"
	"fmt"
	"signalbot/internal/logger"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrDuplicateTicket = errors.New("Тикет уже отслеживается.")

type DuplicateTicketError struct {
	Ticket models.Ticket
}

func (e *DuplicateTicketError) Error() string {
	return fmt.Sprintf("Тикет %s уже отслеживается.", e.Ticket)
}

func (e *DuplicateTicketError) Unwrap() error {
	return ErrDuplicateTicket
}

// Archive receives every order that leaves the live map.
type Archive interface {
	Record(order models.TrackedOrder) error
}

type Transition struct {
	Ticket models.Ticket      `json:"ticket"`
	From   models.OrderStatus `json:"from"`
	To     models.OrderStatus `json:"to"`
	At     time.Time          `json:"at"`
}

type entry struct {
	order models.TrackedOrder
	seq   uint64
}

// Tracker owns the ticket -> order map. Writers hold the write lock, readers get copies.
type Tracker struct {
	mu      sync.RWMutex
	orders  map[models.Ticket]*entry
	seq     uint64
	archive Archive
	log     *logger.Logger
	now     func() time.Time
}

func New(log *logger.Logger, archive Archive) *Tracker {
	if log == nil {
		log = logger.Discard()
	}
	return &Tracker{
		orders:  make(map[models.Ticket]*entry),
		archive: archive,
		log:     log,
		now:     time.Now,
	}
}

func (t *Tracker) logEntry() *logrus.Entry {
	return t.log.WithComponent("tracker")
}

func (t *Tracker) Register(resolved models.ResolvedOrder, ticket models.Ticket, signal models.TradeSignal, status models.OrderStatus) (models.TrackedOrder, error) {
	if ticket == "" {
		return models.TrackedOrder{}, fmt.Errorf("Пустой тикет.")
	}
	if status != models.OrderStatusPending && status != models.OrderStatusActivePosition {
		return models.TrackedOrder{}, fmt.Errorf("Недопустимый статус при регистрации: %s", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.orders[ticket]; ok {
		return models.TrackedOrder{}, &DuplicateTicketError{Ticket: ticket}
	}

	now := t.now()
	t.seq++
	order := models.TrackedOrder{
		Ticket:       ticket,
		Status:       status,
		Signal:       signal,
		Resolved:     resolved,
		StopLoss:     resolved.StopLoss,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	t.orders[ticket] = &entry{order: order, seq: t.seq}
	metrics.TrackedOrders.Set(float64(len(t.orders)))

	t.logEntry().WithFields(logrus.Fields{
		"ticket": ticket,
		"status": status,
	}).Info("Ордер поставлен на отслеживание.")
	return order, nil
}

// FindTargetsForSLUpdate returns every open position, or every pending order when there are
// no positions, oldest first.
func (t *Tracker) FindTargetsForSLUpdate() []models.TrackedOrder {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := t.filterLocked(models.OrderStatusActivePosition)
	if len(active) > 0 {
		return active
	}
	return t.filterLocked(models.OrderStatusPending)
}

func (t *Tracker) filterLocked(status models.OrderStatus) []models.TrackedOrder {
	var matched []*entry
	for _, e := range t.orders {
		if e.order.Status == status {
			matched = append(matched, e)
		}
	}
	return sortedCopies(matched)
}

// Mark moves a ticket to a new status. Unknown tickets are ignored. Terminal statuses remove
// the order from the live map and hand it to the archive.
func (t *Tracker) Mark(ticket models.Ticket, status models.OrderStatus) (Transition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.markLocked(ticket, status)
}

func (t *Tracker) markLocked(ticket models.Ticket, status models.OrderStatus) (Transition, bool) {
	e, ok := t.orders[ticket]
	if !ok {
		t.logEntry().WithField("ticket", ticket).Debug("Тикет не отслеживается, смена статуса пропущена.")
		return Transition{}, false
	}
	if e.order.Status == status {
		return Transition{}, false
	}

	tr := Transition{Ticket: ticket, From: e.order.Status, To: status, At: t.now()}
	e.order.Status = status
	e.order.UpdatedAt = tr.At

	if status.IsTerminal() {
		delete(t.orders, ticket)
		metrics.TrackedOrders.Set(float64(len(t.orders)))
		if t.archive != nil {
			if err := t.archive.Record(e.order); err != nil {
				t.logEntry().WithError(err).WithField("ticket", ticket).Error("Не удалось записать ордер в архив.")
			}
		}
	}

	t.logEntry().WithFields(logrus.Fields{
		"ticket": ticket,
		"from":   tr.From,
		"to":     tr.To,
	}).Info("Статус ордера изменён.")
	return tr, true
}

func (t *Tracker) SetStopLoss(ticket models.Ticket, stopLoss decimal.Decimal) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.orders[ticket]
	if !ok {
		return false
	}
	e.order.StopLoss = stopLoss
	e.order.UpdatedAt = t.now()
	return true
}

func (t *Tracker) Get(ticket models.Ticket) (models.TrackedOrder, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.orders[ticket]
	if !ok {
		return models.TrackedOrder{}, false
	}
	return e.order, true
}

func (t *Tracker) Snapshot() []models.TrackedOrder {
	t.mu.RLock()
	defer t.mu.RUnlock()

	all := make([]*entry, 0, len(t.orders))
	for _, e := range t.orders {
		all = append(all, e)
	}
	return sortedCopies(all)
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.orders)
}

func (t *Tracker) CountByStatus() map[models.OrderStatus]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	counts := make(map[models.OrderStatus]int)
	for _, e := range t.orders {
		counts[e.order.Status]++
	}
	return counts
}

func sortedCopies(entries []*entry) []models.TrackedOrder {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	out := make([]models.TrackedOrder, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.order)
	}
	return out
}
