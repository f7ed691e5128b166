package engine

import (
	"context"
	"errors"
	"fmt"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"signalbot/internal/terminal"
)

func (e *Engine) handleSignal(ctx context.Context, signal models.TradeSignal) Outcome {
	e.logSignal(signal)

	fail := func(err error, warnings []RiskWarning) Outcome {
		e.logEntry().WithError(err).WithField("signal_id", signal.ID).Error("Ордер по сигналу не размещён.")
		return Outcome{Kind: OutcomeOrderFailed, Warnings: warnings, Err: err}
	}

	volume, err := e.volume(ctx)
	if err != nil {
		return fail(err, nil)
	}

	entry := e.resolver.Resolve(signal.Direction, signal.EntryLow, signal.EntryHigh).Round(e.risk.instrument.Digits)

	risk, err := e.risk.Compute(signal.Direction, entry, signal.StopLoss, volume)
	for _, w := range risk.Warnings {
		metrics.RiskWarningsTotal.WithLabelValues(w.Code).Inc()
		e.logEntry().WithField("code", w.Code).Warn(w.Message)
	}
	if err != nil {
		if errors.Is(err, ErrRiskRejected) {
			e.logEntry().WithError(err).Warn("Сигнал отклонён риск-политикой.")
			return Outcome{Kind: OutcomeOrderFailed, Warnings: risk.Warnings, Err: err}
		}
		return fail(err, risk.Warnings)
	}

	quote, err := e.client.Quote(ctx, e.cfg.Symbol)
	if err != nil {
		metrics.BrokerErrorsTotal.WithLabelValues(terminal.OpQuote).Inc()
		return fail(fmt.Errorf("Не удалось получить котировку: %w", err), risk.Warnings)
	}
	market := MarketPrice(signal.Direction, quote)
	kind := Classify(signal.Direction, entry, market)

	resolved := models.ResolvedOrder{
		Symbol:     e.cfg.Symbol,
		Direction:  signal.Direction,
		Kind:       kind,
		EntryPrice: entry,
		StopLoss:   risk.StopLoss,
		TakeProfit: risk.TakeProfit,
		Volume:     volume,
		Expiration: e.expiration(),
	}
	e.logResolved(resolved, market)

	ticket, err := e.client.PlaceOrder(ctx, models.PlaceOrderRequest{
		Symbol:     resolved.Symbol,
		Kind:       resolved.Kind,
		Direction:  resolved.Direction,
		EntryPrice: resolved.EntryPrice,
		StopLoss:   resolved.StopLoss,
		TakeProfit: resolved.TakeProfit,
		Volume:     resolved.Volume,
		Expiration: resolved.Expiration,
	})
	if err != nil {
		metrics.BrokerErrorsTotal.WithLabelValues(terminal.OpPlaceOrder).Inc()
		return fail(fmt.Errorf("Терминал отклонил ордер: %w", err), risk.Warnings)
	}
	metrics.OrdersPlacedTotal.WithLabelValues(string(resolved.Direction), string(resolved.Kind)).Inc()

	order, err := e.tracker.Register(resolved, ticket, signal, models.OrderStatusPending)
	if err != nil {
		e.logEntry().WithError(err).WithField("ticket", ticket).Error("Не удалось поставить ордер на отслеживание.")
		return Outcome{Kind: OutcomeOrderPlaced, Warnings: risk.Warnings, Err: err}
	}

	e.logEntry().WithField("ticket", ticket).Infof("Размещён %s %s по %s.", resolved.Direction, resolved.Kind, resolved.EntryPrice)
	return Outcome{Kind: OutcomeOrderPlaced, Order: &order, Warnings: risk.Warnings}
}
