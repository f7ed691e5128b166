package parser

import (
	"regexp"
	"signalbot/internal/models"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var (
	DefaultBuySynonyms  = []string{"buy", "long", "bullish", "compra", "largo"}
	DefaultSellSynonyms = []string{"sell", "short", "bearish", "venta", "corto"}
)

// Result is one of Signal, Update or Unrecognized.
type Result interface {
	isResult()
}

type Signal struct {
	models.TradeSignal
}

type Update struct {
	models.SLUpdate
}

type Unrecognized struct {
	Err error
}

func (Signal) isResult()       {}
func (Update) isResult()       {}
func (Unrecognized) isResult() {}

type Options struct {
	BuySynonyms  []string
	SellSynonyms []string
	Now          func() time.Time
	NewID        func() string
}

type Parser struct {
	buy   *regexp.Regexp
	sell  *regexp.Regexp
	now   func() time.Time
	newID func() string
}

func New(opts Options) (*Parser, error) {
	if len(opts.BuySynonyms) == 0 {
		opts.BuySynonyms = DefaultBuySynonyms
	}
	if len(opts.SellSynonyms) == 0 {
		opts.SellSynonyms = DefaultSellSynonyms
	}

	buy, err := keywordPattern(opts.BuySynonyms)
	if err != nil {
		return nil, err
	}
	sell, err := keywordPattern(opts.SellSynonyms)
	if err != nil {
		return nil, err
	}

	p := &Parser{buy: buy, sell: sell, now: opts.Now, newID: opts.NewID}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p, nil
}

// Parse never fails outright: anything that is neither a trade signal nor a stop-loss update
// comes back as Unrecognized with the reason.
func (p *Parser) Parse(raw string) Result {
	text := normalize(raw)
	if strings.TrimSpace(text) == "" {
		return Unrecognized{Err: ErrEmpty}
	}

	signal, headerFound, err := p.parseTrade(text)
	if err == nil {
		signal.ID = p.newID()
		signal.RawText = raw
		signal.ReceivedAt = p.now()
		return Signal{TradeSignal: signal}
	}

	// A message that names a direction and an entry is a broken signal, not an update.
	if !headerFound {
		if sl, ok := parseUpdate(text); ok {
			return Update{SLUpdate: models.SLUpdate{NewStopLoss: sl, RawText: raw}}
		}
	}

	return Unrecognized{Err: err}
}

func normalize(raw string) string {
	text := norm.NFKC.String(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func (p *Parser) parseTrade(text string) (models.TradeSignal, bool, error) {
	var signal models.TradeSignal

	for _, pattern := range immediatePatterns {
		if pattern.MatchString(text) {
			return signal, false, ErrImmediateExecution
		}
	}

	lines := strings.Split(text, "\n")
	header := len(lines)
	for i, line := range lines {
		if slLinePattern.MatchString(line) || tpLinePattern.MatchString(line) {
			header = i
			break
		}
	}

	matches := p.findDirections(lines[:header])
	if len(matches) == 0 {
		return signal, false, ErrNoDirection
	}
	sl, slFound := findStopLoss(lines)

	// Both directions can be named ("short term: buy"). The one whose entry the stop loss
	// protects wins; otherwise buy goes first.
	found := false
	for _, m := range matches {
		low, high, ok := findEntry(lines[:header], m.line, m.end)
		if !ok {
			continue
		}
		fits := slFound && stopLossFits(m.direction, low, high, sl)
		if !found || fits {
			signal.Direction, signal.EntryLow, signal.EntryHigh = m.direction, low, high
			found = true
		}
		if fits {
			break
		}
	}
	if !found {
		return signal, false, ErrNoEntry
	}
	if !slFound {
		return signal, true, ErrNoStopLoss
	}
	signal.StopLoss = sl
	signal.TakeProfitCandidates = findTakeProfits(lines)

	return signal, true, nil
}

type directionMatch struct {
	direction models.Direction
	line      int
	// end is the byte offset right after the keyword.
	end int
}

// findDirections returns the first buy keyword and the first sell keyword of the header lines,
// buy first.
func (p *Parser) findDirections(lines []string) []directionMatch {
	var found []directionMatch
	for _, kw := range []struct {
		direction models.Direction
		pattern   *regexp.Regexp
	}{
		{models.DirectionBuy, p.buy},
		{models.DirectionSell, p.sell},
	} {
		for i, line := range lines {
			if loc := kw.pattern.FindStringSubmatchIndex(line); loc != nil {
				found = append(found, directionMatch{direction: kw.direction, line: i, end: loc[3]})
				break
			}
		}
	}
	return found
}

func stopLossFits(direction models.Direction, low, high, sl decimal.Decimal) bool {
	if direction == models.DirectionBuy {
		return sl.LessThan(low)
	}
	return sl.GreaterThan(high)
}

// findStopLoss prefers a labeled SL line and falls back to an inline "SL n".
func findStopLoss(lines []string) (decimal.Decimal, bool) {
	for _, pattern := range []*regexp.Regexp{slLinePattern, slInlinePattern} {
		for _, line := range lines {
			if m := pattern.FindStringSubmatch(line); m != nil {
				if sl, err := decimal.NewFromString(m[1]); err == nil {
					return sl, true
				}
			}
		}
	}
	return decimal.Zero, false
}

func findTakeProfits(lines []string) []decimal.Decimal {
	tps := []decimal.Decimal{}
	for _, line := range lines {
		if m := tpLinePattern.FindStringSubmatch(line); m != nil {
			if tp, err := decimal.NewFromString(m[1]); err == nil {
				tps = append(tps, tp)
			}
		}
	}
	if len(tps) > 0 {
		return tps
	}
	for _, line := range lines {
		for _, m := range tpInlinePattern.FindAllStringSubmatch(line, -1) {
			if tp, err := decimal.NewFromString(m[1]); err == nil {
				tps = append(tps, tp)
			}
		}
	}
	return tps
}

func findEntry(lines []string, dirLine, dirEnd int) (decimal.Decimal, decimal.Decimal, bool) {
	header := strings.Join(lines, "\n")

	if m := atEntryPattern.FindStringSubmatch(header); m != nil {
		return entryRange(m)
	}
	if m := labelEntryPattern.FindStringSubmatch(header); m != nil {
		return entryRange(m)
	}
	if m := bareEntryPattern.FindStringSubmatch(lines[dirLine][dirEnd:]); m != nil {
		return entryRange(m)
	}
	for i := dirLine + 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if m := bareEntryPattern.FindStringSubmatch(lines[i]); m != nil {
			return entryRange(m)
		}
		break
	}
	return decimal.Zero, decimal.Zero, false
}

// entryRange turns "A" or "A-B" submatches into an ordered (low, high) pair.
func entryRange(m []string) (decimal.Decimal, decimal.Decimal, bool) {
	a, err := decimal.NewFromString(m[1])
	if err != nil || !a.IsPositive() {
		return decimal.Zero, decimal.Zero, false
	}
	b := a
	if len(m) > 2 && m[2] != "" {
		b, err = decimal.NewFromString(m[2])
		if err != nil || !b.IsPositive() {
			return decimal.Zero, decimal.Zero, false
		}
	}
	return decimal.Min(a, b), decimal.Max(a, b), true
}

func parseUpdate(text string) (decimal.Decimal, bool) {
	m := slUpdatePattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, false
	}
	sl, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return sl, true
}
