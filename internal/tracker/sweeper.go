package tracker

import (
	"context"
	"signalbot/internal/logger"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"time"

	"github.com/sirupsen/logrus"
)

type StateProvider interface {
	BrokerState(ctx context.Context, symbol string) (models.BrokerState, error)
}

type SweeperConfig struct {
	Symbol            string
	Interval          time.Duration
	StatusLogInterval time.Duration
}

// Sweeper reconciles the tracker with the terminal's view. It never places or modifies orders.
type Sweeper struct {
	tracker  *Tracker
	provider StateProvider
	cfg      SweeperConfig
	log      *logger.Logger
	now      func() time.Time
}

func NewSweeper(tracker *Tracker, provider StateProvider, cfg SweeperConfig, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Sweeper{
		tracker:  tracker,
		provider: provider,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func (s *Sweeper) logEntry() *logrus.Entry {
	return s.log.ForSymbol("sweeper", s.cfg.Symbol)
}

// Sweep applies one broker snapshot. state.Time is the local time the snapshot was requested;
// orders registered after it are left alone since the broker could not have listed them yet.
func (s *Sweeper) Sweep(state models.BrokerState) []Transition {
	pending := make(map[models.Ticket]struct{}, len(state.Pending))
	for _, o := range state.Pending {
		pending[o.Ticket] = struct{}{}
	}
	positions := make(map[models.Ticket]struct{}, len(state.Positions))
	for _, p := range state.Positions {
		positions[p.Ticket] = struct{}{}
	}

	now := state.Time
	if now.IsZero() {
		now = s.now()
	}

	t := s.tracker
	t.mu.Lock()
	defer t.mu.Unlock()

	live := make([]*entry, 0, len(t.orders))
	for _, e := range t.orders {
		live = append(live, e)
	}

	var transitions []Transition
	for _, order := range sortedCopies(live) {
		if !state.Time.IsZero() && order.RegisteredAt.After(state.Time) {
			continue
		}

		if _, ok := positions[order.Ticket]; ok {
			if order.Status == models.OrderStatusPending {
				if tr, ok := t.markLocked(order.Ticket, models.OrderStatusActivePosition); ok {
					transitions = append(transitions, tr)
				}
			}
			continue
		}
		if _, ok := pending[order.Ticket]; ok {
			continue
		}

		if tr, ok := t.markLocked(order.Ticket, closedStatus(order, state, now)); ok {
			transitions = append(transitions, tr)
		}
	}

	for _, tr := range transitions {
		metrics.SweepTransitionsTotal.WithLabelValues(string(tr.To)).Inc()
	}
	return transitions
}

func closedStatus(order models.TrackedOrder, state models.BrokerState, now time.Time) models.OrderStatus {
	if reason, ok := state.Closed[order.Ticket]; ok {
		return reason.Status()
	}
	if order.Status == models.OrderStatusActivePosition {
		return models.OrderStatusFilled
	}
	if exp := order.Resolved.Expiration; !exp.IsZero() && !now.Before(exp) {
		return models.OrderStatusExpired
	}
	return models.OrderStatusCancelled
}

// Run sweeps every Interval and logs a status summary every StatusLogInterval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var status <-chan time.Time
	if s.cfg.StatusLogInterval > 0 {
		statusTicker := time.NewTicker(s.cfg.StatusLogInterval)
		defer statusTicker.Stop()
		status = statusTicker.C
	}

	s.logEntry().WithField("interval", s.cfg.Interval.String()).Info("Сверка ордеров запущена.")
	for {
		select {
		case <-ctx.Done():
			s.logEntry().Info("Сверка ордеров остановлена.")
			return nil
		case <-ticker.C:
			s.sweepOnce(ctx)
		case <-status:
			s.logStatus()
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	if s.tracker.Len() == 0 {
		return
	}
	requested := s.now()
	state, err := s.provider.BrokerState(ctx, s.cfg.Symbol)
	if err != nil {
		metrics.BrokerErrorsTotal.WithLabelValues("broker_state").Inc()
		s.logEntry().WithError(err).Warn("Не удалось получить состояние терминала.")
		return
	}
	// Broker server time runs on its own clock; registration times are local.
	state.Time = requested
	if transitions := s.Sweep(state); len(transitions) > 0 {
		s.logEntry().WithField("count", len(transitions)).Info("Сверка применила изменения статусов.")
	}
}

func (s *Sweeper) logStatus() {
	counts := s.tracker.CountByStatus()
	s.logEntry().WithFields(logrus.Fields{
		"pending":   counts[models.OrderStatusPending],
		"positions": counts[models.OrderStatusActivePosition],
		"total":     s.tracker.Len(),
	}).Info("Статус отслеживаемых ордеров.")
}
