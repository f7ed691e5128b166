package engine

import (
	"context"
	"fmt"
	"signalbot/internal/config"
	"signalbot/internal/logger"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"signalbot/internal/parser"
	"signalbot/internal/source"
	"signalbot/internal/terminal"
	"signalbot/internal/tracker"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type OutcomeKind string

const (
	OutcomeIgnored     OutcomeKind = "ignored"
	OutcomeOrderPlaced OutcomeKind = "order_placed"
	OutcomeOrderFailed OutcomeKind = "order_failed"
	OutcomeSLUpdate    OutcomeKind = "sl_update"
)

// Outcome describes what one message led to.
type Outcome struct {
	Kind     OutcomeKind
	Order    *models.TrackedOrder
	Targets  int
	Modified int
	Warnings []RiskWarning
	Err      error
}

// Engine turns channel messages into terminal calls. Messages are handled one at a time.
type Engine struct {
	cfg      config.TradingConfig
	parser   *parser.Parser
	resolver *EntryResolver
	risk     *RiskCalculator
	client   terminal.Client
	tracker  *tracker.Tracker
	log      *logger.Logger

	mu  sync.Mutex
	now func() time.Time
}

func New(cfg *config.Config, client terminal.Client, tr *tracker.Tracker, log *logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.Discard()
	}
	trading := cfg.Trading

	p, err := parser.New(parser.Options{
		BuySynonyms:  trading.BuySynonyms,
		SellSynonyms: trading.SellSynonyms,
	})
	if err != nil {
		return nil, &config.ConfigurationError{Field: "trading.buy_synonyms/sell_synonyms", Reason: err.Error()}
	}

	resolver, err := NewEntryResolver(trading.EntryStrategy, trading.CentralZone)
	if err != nil {
		return nil, err
	}

	risk, err := NewRiskCalculator(Instrument{
		TickSize:  trading.Instrument.TickSize,
		TickValue: trading.Instrument.TickValue,
		PipSize:   trading.Instrument.PipSize,
		Digits:    trading.Instrument.Digits,
	}, trading.TargetProfitUSD, trading.MaxSLDistancePips, trading.SLPolicy)
	if err != nil {
		return nil, err
	}

	if !trading.UseMinimumVolume && !trading.Volume.IsPositive() {
		return nil, &config.ConfigurationError{Field: "trading.volume", Reason: "объём должен быть больше нуля"}
	}

	return &Engine{
		cfg:      trading,
		parser:   p,
		resolver: resolver,
		risk:     risk,
		client:   client,
		tracker:  tr,
		log:      log,
		now:      time.Now,
	}, nil
}

// Start restores orders the terminal already holds, then consumes src and runs the sweeper
// until ctx is done. A source that runs dry does not stop the sweeper.
func (e *Engine) Start(ctx context.Context, src source.Source, sweeper *tracker.Sweeper) error {
	if n, err := e.Restore(ctx); err != nil {
		e.logEntry().WithError(err).Warn("Не удалось восстановить ордера из терминала.")
	} else if n > 0 {
		e.logEntry().WithField("count", n).Info("Ордера восстановлены из терминала.")
	}

	messages, err := src.Messages(ctx)
	if err != nil {
		return fmt.Errorf("Не удалось запустить источник сообщений: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	if sweeper != nil {
		g.Go(func() error {
			return sweeper.Run(ctx)
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-messages:
				if !ok {
					e.logEntry().Info("Источник сообщений завершён.")
					return nil
				}
				e.logEntry().WithField("message_id", msg.ID).Debug("Сообщение из источника.")
				e.Handle(ctx, msg.Text)
			}
		}
	})

	e.logEntry().Info("Бот запущен.")
	return g.Wait()
}

func (e *Engine) Handle(ctx context.Context, raw string) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logEntry().WithField("text", raw).Info("Получено сообщение.")

	switch res := e.parser.Parse(raw).(type) {
	case parser.Signal:
		metrics.MessagesTotal.WithLabelValues("signal").Inc()
		return e.handleSignal(ctx, res.TradeSignal)
	case parser.Update:
		metrics.MessagesTotal.WithLabelValues("sl_update").Inc()
		return e.handleUpdate(ctx, res.SLUpdate)
	case parser.Unrecognized:
		metrics.MessagesTotal.WithLabelValues("unrecognized").Inc()
		e.logEntry().WithField("reason", res.Err.Error()).Info("Сообщение пропущено.")
		return Outcome{Kind: OutcomeIgnored, Err: res.Err}
	default:
		return Outcome{Kind: OutcomeIgnored}
	}
}

func (e *Engine) volume(ctx context.Context) (decimal.Decimal, error) {
	if !e.cfg.UseMinimumVolume {
		return e.cfg.Volume, nil
	}
	v, err := e.client.MinVolume(ctx, e.cfg.Symbol)
	if err != nil {
		metrics.BrokerErrorsTotal.WithLabelValues(terminal.OpMinVolume).Inc()
		return decimal.Zero, fmt.Errorf("Не удалось получить минимальный объём: %w", err)
	}
	return v, nil
}

func (e *Engine) expiration() time.Time {
	if e.cfg.PendingExpiration <= 0 {
		return time.Time{}
	}
	return e.now().Add(e.cfg.PendingExpiration)
}
