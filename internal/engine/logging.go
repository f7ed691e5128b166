package engine

import (
	"signalbot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func (e *Engine) logEntry() *logrus.Entry {
	return e.log.ForSymbol("engine", e.cfg.Symbol)
}

func (e *Engine) logSignal(signal models.TradeSignal) {
	tps := make([]string, 0, len(signal.TakeProfitCandidates))
	for _, tp := range signal.TakeProfitCandidates {
		tps = append(tps, tp.String())
	}
	e.logEntry().WithFields(logrus.Fields{
		"signal_id":  signal.ID,
		"direction":  signal.Direction,
		"entry_low":  signal.EntryLow.String(),
		"entry_high": signal.EntryHigh.String(),
		"sl":         signal.StopLoss.String(),
		"tp_message": tps,
	}).Info("Сигнал распознан.")
}

func (e *Engine) logResolved(order models.ResolvedOrder, market decimal.Decimal) {
	fields := logrus.Fields{
		"direction": order.Direction,
		"kind":      order.Kind,
		"entry":     order.EntryPrice.String(),
		"market":    market.String(),
		"sl":        order.StopLoss.String(),
		"volume":    order.Volume.String(),
		"strategy":  e.resolver.Strategy(),
	}
	if !order.TakeProfit.IsZero() {
		fields["tp"] = order.TakeProfit.String()
		fields["profit_at_tp"] = e.risk.Profit(order.Direction, order.EntryPrice, order.TakeProfit, order.Volume).StringFixed(2)
	}
	if !order.Expiration.IsZero() {
		fields["expiration"] = order.Expiration.Format("2006-01-02T15:04:05Z07:00")
	}
	e.logEntry().WithFields(fields).Info("Параметры ордера рассчитаны.")
}
