package engine

import (
	"signalbot/internal/models"

	"github.com/shopspring/decimal"
)

// Classify decides the pending order type. An entry equal to the market price is sent as a
// STOP order.
func Classify(direction models.Direction, entry, market decimal.Decimal) models.OrderKind {
	if direction == models.DirectionBuy {
		if entry.LessThan(market) {
			return models.OrderKindLimit
		}
		return models.OrderKindStop
	}
	if entry.GreaterThan(market) {
		return models.OrderKindLimit
	}
	return models.OrderKindStop
}

// MarketPrice is the side of the quote a pending order is compared against: ask for BUY,
// bid for SELL.
func MarketPrice(direction models.Direction, quote models.Quote) decimal.Decimal {
	if direction == models.DirectionBuy {
		return quote.Ask
	}
	return quote.Bid
}
