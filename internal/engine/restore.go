package engine

import (
	"context"
	"errors"
	"signalbot/internal/models"
	"signalbot/internal/tracker"

	"github.com/sirupsen/logrus"
)

// Restore registers orders and positions the terminal already holds, so stop-loss updates
// still reach them after a restart. The signals behind them are unknown at this point.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	state, err := e.client.BrokerState(ctx, e.cfg.Symbol)
	if err != nil {
		return 0, err
	}

	restored := 0
	register := func(resolved models.ResolvedOrder, ticket models.Ticket, status models.OrderStatus) {
		_, err := e.tracker.Register(resolved, ticket, models.TradeSignal{}, status)
		if errors.Is(err, tracker.ErrDuplicateTicket) {
			return
		}
		if err != nil {
			e.logEntry().WithError(err).WithField("ticket", ticket).Warn("Не удалось восстановить ордер.")
			return
		}
		restored++
		e.logEntry().WithFields(logrus.Fields{
			"ticket": ticket,
			"status": status,
			"price":  resolved.EntryPrice.String(),
			"sl":     resolved.StopLoss.String(),
		}).Debug("Ордер восстановлен.")
	}

	for _, ord := range state.Pending {
		register(models.ResolvedOrder{
			Symbol:     ord.Symbol,
			EntryPrice: ord.Price,
			StopLoss:   ord.StopLoss,
			TakeProfit: ord.TakeProfit,
		}, ord.Ticket, models.OrderStatusPending)
	}
	for _, pos := range state.Positions {
		register(models.ResolvedOrder{
			Symbol:     pos.Symbol,
			EntryPrice: pos.OpenPrice,
			StopLoss:   pos.StopLoss,
			TakeProfit: pos.TakeProfit,
		}, pos.Ticket, models.OrderStatusActivePosition)
	}
	return restored, nil
}
