package engine

import (
	"context"
	"errors"
	"fmt"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"signalbot/internal/terminal"

	"github.com/sirupsen/logrus"
)

// handleUpdate applies a new stop loss to every open position, or to every pending order when
// nothing is open yet. The message names no ticket, so all of them get it.
func (e *Engine) handleUpdate(ctx context.Context, update models.SLUpdate) Outcome {
	sl := update.NewStopLoss.Round(e.risk.instrument.Digits)
	targets := e.tracker.FindTargetsForSLUpdate()

	e.logEntry().WithFields(logrus.Fields{
		"new_sl":  sl.String(),
		"targets": len(targets),
	}).Info("Получено обновление стоп-лосса.")

	if len(targets) == 0 {
		metrics.SLUpdatesTotal.WithLabelValues("no_targets").Inc()
		e.logEntry().Info("Нет отслеживаемых ордеров для обновления стоп-лосса.")
		return Outcome{Kind: OutcomeSLUpdate}
	}

	out := Outcome{Kind: OutcomeSLUpdate, Targets: len(targets)}
	var errs []error
	for _, target := range targets {
		entry := e.logEntry().WithField("ticket", target.Ticket)

		err := e.client.ModifyStopLoss(ctx, models.ModifyStopLossRequest{
			Ticket:      target.Ticket,
			NewStopLoss: sl,
			Position:    target.Status == models.OrderStatusActivePosition,
		})
		if err != nil {
			metrics.SLUpdatesTotal.WithLabelValues("failed").Inc()
			metrics.BrokerErrorsTotal.WithLabelValues(terminal.OpModifyStopLoss).Inc()
			entry.WithError(err).Error("Не удалось изменить стоп-лосс.")
			errs = append(errs, fmt.Errorf("тикет %s: %w", target.Ticket, err))
			continue
		}

		e.tracker.SetStopLoss(target.Ticket, sl)
		metrics.SLUpdatesTotal.WithLabelValues("ok").Inc()
		out.Modified++
		entry.WithFields(logrus.Fields{
			"old_sl": target.StopLoss.String(),
			"new_sl": sl.String(),
		}).Info("Стоп-лосс изменён.")
	}

	out.Err = errors.Join(errs...)
	return out
}
