package engine

import (
	"signalbot/internal/config"
	"signalbot/internal/models"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestResolveWorkedTable(t *testing.T) {
	low, high := d("3640.5"), d("3645.5")

	tests := []struct {
		direction   models.Direction
		strategy    string
		centralZone string
		want        string
	}{
		{models.DirectionSell, "min", "0", "3645.5"},
		{models.DirectionSell, "min", "1", "3644.5"},
		{models.DirectionBuy, "max", "0", "3645.5"},
		{models.DirectionBuy, "max", "-0.5", "3645.0"},
		{models.DirectionBuy, "auto", "0", "3640.5"},
		{models.DirectionSell, "auto", "0", "3645.5"},
		{models.DirectionBuy, "min", "0", "3640.5"},
		{models.DirectionSell, "max", "0", "3640.5"},
	}

	for _, tt := range tests {
		t.Run(string(tt.direction)+"/"+tt.strategy+"/"+tt.centralZone, func(t *testing.T) {
			r, err := NewEntryResolver(tt.strategy, d(tt.centralZone))
			require.NoError(t, err)

			got := r.Resolve(tt.direction, low, high)
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestResolveSinglePriceAndSwappedBounds(t *testing.T) {
	r, err := NewEntryResolver("max", d("0.5"))
	require.NoError(t, err)

	assert.True(t, r.Resolve(models.DirectionBuy, d("3640"), d("3640")).Equal(d("3640.5")))
	assert.True(t, r.Resolve(models.DirectionSell, d("3640"), d("3640")).Equal(d("3640.5")))
	assert.True(t, r.Resolve(models.DirectionBuy, d("3645.5"), d("3640.5")).Equal(d("3646")))

	min, err := NewEntryResolver("min", d("-1"))
	require.NoError(t, err)
	assert.True(t, min.Resolve(models.DirectionSell, d("3640"), d("3640")).Equal(d("3639")))
	assert.True(t, min.Resolve(models.DirectionBuy, d("3640"), d("3640")).Equal(d("3639")))
}

func TestNewEntryResolverUnknownStrategy(t *testing.T) {
	_, err := NewEntryResolver("middle", decimal.Zero)
	require.Error(t, err)

	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "trading.entry_strategy", cfgErr.Field)

	r, err := NewEntryResolver(" MIN ", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, EntryStrategyMin, r.Strategy())
}

func TestClassify(t *testing.T) {
	market := d("3650")

	assert.Equal(t, models.OrderKindLimit, Classify(models.DirectionBuy, d("3645"), market))
	assert.Equal(t, models.OrderKindStop, Classify(models.DirectionBuy, d("3655"), market))
	assert.Equal(t, models.OrderKindLimit, Classify(models.DirectionSell, d("3655"), market))
	assert.Equal(t, models.OrderKindStop, Classify(models.DirectionSell, d("3645"), market))

	assert.Equal(t, models.OrderKindStop, Classify(models.DirectionBuy, market, market))
	assert.Equal(t, models.OrderKindStop, Classify(models.DirectionSell, market, market))
}

func TestMarketPrice(t *testing.T) {
	q := models.Quote{Bid: d("3650.1"), Ask: d("3650.4")}
	assert.True(t, MarketPrice(models.DirectionBuy, q).Equal(d("3650.4")))
	assert.True(t, MarketPrice(models.DirectionSell, q).Equal(d("3650.1")))
}
