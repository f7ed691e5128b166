package engine

import (
	"signalbot/internal/config"
	"signalbot/internal/models"
	"strings"

	"github.com/shopspring/decimal"
)

type EntryStrategy string

const (
	EntryStrategyAuto EntryStrategy = "auto"
	EntryStrategyMin  EntryStrategy = "min"
	EntryStrategyMax  EntryStrategy = "max"
)

// EntryResolver picks one entry price out of a signal's range and shifts it by the central
// zone: BUY adds the offset, SELL subtracts it.
type EntryResolver struct {
	strategy    EntryStrategy
	centralZone decimal.Decimal
}

func NewEntryResolver(strategy string, centralZone decimal.Decimal) (*EntryResolver, error) {
	s := EntryStrategy(strings.ToLower(strings.TrimSpace(strategy)))
	switch s {
	case EntryStrategyAuto, EntryStrategyMin, EntryStrategyMax:
	default:
		return nil, &config.ConfigurationError{
			Field:  "trading.entry_strategy",
			Reason: "неизвестная стратегия входа " + strategy,
		}
	}
	return &EntryResolver{strategy: s, centralZone: centralZone}, nil
}

func (r *EntryResolver) Strategy() EntryStrategy {
	return r.strategy
}

func (r *EntryResolver) Resolve(direction models.Direction, low, high decimal.Decimal) decimal.Decimal {
	if low.GreaterThan(high) {
		low, high = high, low
	}
	// A single price has no zone to step into, so the offset is applied as given.
	if low.Equal(high) {
		return low.Add(r.centralZone)
	}

	base := low
	switch {
	case direction == models.DirectionBuy && r.strategy == EntryStrategyMax:
		base = high
	case direction == models.DirectionSell && r.strategy != EntryStrategyMax:
		base = high
	}

	if direction == models.DirectionSell {
		return base.Sub(r.centralZone)
	}
	return base.Add(r.centralZone)
}
