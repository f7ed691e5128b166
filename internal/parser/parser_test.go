package parser

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	fixed := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	p, err := New(Options{
		Now:   func() time.Time { return fixed },
		NewID: func() string { return "sig-1" },
	})
	require.NoError(t, err)
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireSignal(t *testing.T, res Result) Signal {
	t.Helper()
	sig, ok := res.(Signal)
	require.Truef(t, ok, "expected Signal, got %#v", res)
	return sig
}

func TestParseSampleMessage(t *testing.T) {
	p := newTestParser(t)
	raw := "Sell Gold @3640.5-3645.5\nSl :3647.5\nTp1 :3638.5"

	sig := requireSignal(t, p.Parse(raw))
	assert.Equal(t, "SELL", string(sig.Direction))
	assert.True(t, sig.EntryLow.Equal(dec("3640.5")))
	assert.True(t, sig.EntryHigh.Equal(dec("3645.5")))
	assert.True(t, sig.StopLoss.Equal(dec("3647.5")))
	require.Len(t, sig.TakeProfitCandidates, 1)
	assert.True(t, sig.TakeProfitCandidates[0].Equal(dec("3638.5")))
	assert.Equal(t, "sig-1", sig.ID)
	assert.Equal(t, raw, sig.RawText)
	assert.True(t, sig.IsRange())
}

func TestParseRangeNormalization(t *testing.T) {
	p := newTestParser(t)

	a := requireSignal(t, p.Parse("Buy Gold @3640.5-3645.5\nSL 3630"))
	b := requireSignal(t, p.Parse("Buy Gold @3645.5-3640.5\nSL 3630"))

	assert.True(t, a.EntryLow.Equal(b.EntryLow))
	assert.True(t, a.EntryHigh.Equal(b.EntryHigh))
	assert.True(t, b.EntryLow.LessThanOrEqual(b.EntryHigh))
	assert.True(t, b.EntryLow.Equal(dec("3640.5")))
}

func TestParseEntryForms(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name      string
		raw       string
		direction string
		low       string
		high      string
	}{
		{"at single", "BUY XAUUSD @ 3640\nSL: 3630", "BUY", "3640", "3640"},
		{"entry label", "Gold long\nEntry: 3641 - 3644\nStop Loss: 3635", "BUY", "3641", "3644"},
		{"after keyword", "Sell gold 3650-3655\nS.L. 3660\nTP 3640", "SELL", "3650", "3655"},
		{"next line", "🔥 GOLD SELL 🔥\n3662 - 3658\n\nSL 3668", "SELL", "3658", "3662"},
		{"en dash", "Buy Gold @3640–3643\nSL 3635", "BUY", "3640", "3643"},
		{"spanish", "Venta oro @2650.2\nSL 2655", "SELL", "2650.2", "2650.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := requireSignal(t, p.Parse(tt.raw))
			assert.Equal(t, tt.direction, string(sig.Direction))
			assert.True(t, sig.EntryLow.Equal(dec(tt.low)), "low %s", sig.EntryLow)
			assert.True(t, sig.EntryHigh.Equal(dec(tt.high)), "high %s", sig.EntryHigh)
		})
	}
}

func TestParseTakeProfitsKeepOrderAndDuplicates(t *testing.T) {
	p := newTestParser(t)
	raw := "Buy Gold @3640\nSL 3630\nTP1: 3645\nTP2 3650\nTP 3 : 3650\nTake Profit: 3660"

	sig := requireSignal(t, p.Parse(raw))
	require.Len(t, sig.TakeProfitCandidates, 4)
	want := []string{"3645", "3650", "3650", "3660"}
	for i, w := range want {
		assert.True(t, sig.TakeProfitCandidates[i].Equal(dec(w)), "tp %d = %s", i, sig.TakeProfitCandidates[i])
	}
}

func TestParseDirectionOutsideHeaderIgnored(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("Gold @3640\nSL 3630\nTP 3650 buy more")
	unrec, ok := res.(Unrecognized)
	require.True(t, ok)
	assert.ErrorIs(t, unrec.Err, ErrNoDirection)
}

func TestParseBothDirectionsNamed(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name      string
		raw       string
		direction string
	}{
		{"sell word first, buy setup", "Short term: buy gold @3640\nSL 3630", "BUY"},
		{"buy word first, sell setup", "Buy-side liquidity taken, sell gold @3660\nSL 3670", "SELL"},
		{"stop loss fits neither", "Long or short @3640\nSL 3640", "BUY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := requireSignal(t, p.Parse(tt.raw))
			assert.Equal(t, tt.direction, string(sig.Direction))
		})
	}
}

func TestParseOneLineSignal(t *testing.T) {
	p := newTestParser(t)

	sig := requireSignal(t, p.Parse("BUY GOLD 3640 SL 3630 TP 3650"))
	assert.Equal(t, "BUY", string(sig.Direction))
	assert.True(t, sig.EntryLow.Equal(dec("3640")))
	assert.True(t, sig.EntryHigh.Equal(dec("3640")))
	assert.True(t, sig.StopLoss.Equal(dec("3630")))
	require.Len(t, sig.TakeProfitCandidates, 1)
	assert.True(t, sig.TakeProfitCandidates[0].Equal(dec("3650")))

	sig = requireSignal(t, p.Parse("Sell XAUUSD @3660-3665, SL: 3672, TP1 3650, TP2 3640"))
	assert.True(t, sig.StopLoss.Equal(dec("3672")))
	require.Len(t, sig.TakeProfitCandidates, 2)
	assert.True(t, sig.TakeProfitCandidates[1].Equal(dec("3640")))
}

func TestParseUnrecognized(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "", ErrEmpty},
		{"whitespace", "  \n\t ", ErrEmpty},
		{"no direction", "Gold @3640\nSL 3630", ErrNoDirection},
		{"no entry", "Buy gold\nSL 3630", ErrNoEntry},
		{"number is not next to direction", "Buy running 30 pips\nSL 3630", ErrNoEntry},
		{"no stop loss", "Buy gold @3640\nTP 3650", ErrNoStopLoss},
		{"immediate", "Buy gold now\nSL 3630", ErrImmediateExecution},
		{"scalping", "Scalping sell @3640\nSL 3650", ErrImmediateExecution},
		{"chatter", "Good morning traders!", ErrNoDirection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Parse(tt.raw)
			unrec, ok := res.(Unrecognized)
			require.Truef(t, ok, "expected Unrecognized, got %#v", res)
			assert.ErrorIs(t, unrec.Err, tt.want)

			var perr *ParseError
			assert.ErrorAs(t, unrec.Err, &perr)
		})
	}
}

func TestParseStopLossUpdate(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		raw  string
		want string
	}{
		{"Move SL to 3650", "3650"},
		{"update sl at 3651.5", "3651.5"},
		{"New SL is 3649", "3649"},
		{"change stop loss to 3640", "3640"},
		{"SL to 3652", "3652"},
		{"Guys, move sl to: 3655 now", "3655"},
		{"Gold sell running +50 pips ✅ Move SL to 3645", "3645"},
		{"Buy running 30 pips, move SL to 3650", "3650"},
		{"XAUUSD SELL hit TP1, move SL to 3640", "3640"},
		{"Sell gold\nmove SL to 3661", "3661"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			res := p.Parse(tt.raw)
			upd, ok := res.(Update)
			require.Truef(t, ok, "expected Update, got %#v", res)
			assert.True(t, upd.NewStopLoss.Equal(dec(tt.want)), "got %s", upd.NewStopLoss)
			assert.Equal(t, tt.raw, upd.RawText)
		})
	}
}

func TestParseTradeSignalWinsOverUpdate(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("Buy gold @3640\nSL 3630\nmove SL to 3635 after TP1")
	sig := requireSignal(t, res)
	assert.True(t, sig.StopLoss.Equal(dec("3630")))
}

func TestParseBrokenSignalIsNotUpdate(t *testing.T) {
	p := newTestParser(t)

	res := p.Parse("Buy gold @3640\nmove SL to 3635")
	unrec, ok := res.(Unrecognized)
	require.True(t, ok)
	assert.ErrorIs(t, unrec.Err, ErrNoStopLoss)
}

func TestParseStyledUnicode(t *testing.T) {
	p := newTestParser(t)

	// Mathematical sans-serif bold letters and full-width digits.
	sig := requireSignal(t, p.Parse("𝗦𝗲𝗹𝗹 𝗚𝗼𝗹𝗱 @３６４０\n𝗦𝗟 ３６５０"))
	assert.Equal(t, "SELL", string(sig.Direction))
	assert.True(t, sig.EntryLow.Equal(dec("3640")))
	assert.True(t, sig.StopLoss.Equal(dec("3650")))
}

func TestParseCustomSynonyms(t *testing.T) {
	p, err := New(Options{BuySynonyms: []string{"купить"}, SellSynonyms: []string{"продать"}})
	require.NoError(t, err)

	sig := requireSignal(t, p.Parse("Продать золото @3640\nSL 3650"))
	assert.Equal(t, "SELL", string(sig.Direction))

	res := p.Parse("Buy gold @3640\nSL 3630")
	_, ok := res.(Unrecognized)
	assert.True(t, ok)
}

func TestNewRejectsBlankSynonyms(t *testing.T) {
	_, err := New(Options{BuySynonyms: []string{" "}})
	assert.Error(t, err)
}
