package parser

import (
	"fmt"
	"regexp"
	"strings"
)

const number = `(\d+(?:\.\d+)?)`

// Dash variants accepted between the two bounds of a range.
const rangeSep = `\s*[-–]\s*`

var (
	// Leading decoration (emoji, bullets, spaces) allowed before a label.
	labelPrefix = `^[^\p{L}\p{N}]*`

	slLinePattern = regexp.MustCompile(`(?i)` + labelPrefix +
		`(?:stop[\s-]*loss|s\.?l\.?)(?:[\s:=@-]+)?` + number)

	tpLinePattern = regexp.MustCompile(`(?i)` + labelPrefix +
		`(?:take[\s-]*profit|tp|target)` +
		`(?:\s*\d{1,2}\s*[:=@)-]+|\s*\d{1,2}\s+|[\s:=@-]+)\s*` + number)

	// Same labels anywhere in a line, for one-line signals. A number must follow directly, so
	// "SL to 3645" is never read as a stop loss here.
	slInlinePattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:stop[\s-]*loss|s\.?l\.?)\s*[:=@-]?\s*` + number)
	tpInlinePattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:take[\s-]*profit|tp\d{0,2}|target\d{0,2})[\s:=@)-]+` + number)

	atEntryPattern    = regexp.MustCompile(`@\s*` + number + `(?:` + rangeSep + number + `)?`)
	labelEntryPattern = regexp.MustCompile(`(?i)\b(?:entry|enter)(?:\s*price)?\s*[:=@-]?\s*` + number + `(?:` + rangeSep + number + `)?`)

	// A bare entry sits right after the direction keyword (or opens the next line). Only an
	// instrument name and "@" or ":" may stand in between.
	bareEntryPattern = regexp.MustCompile(`(?i)^\s*(?:(?:gold|xau(?:usd)?|oro)\s*)?[@:]?\s*` + number + `(?:` + rangeSep + number + `)?`)

	immediatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:buy|sell)\s+(?:gold|xauusd)\s+now\b`),
		regexp.MustCompile(`(?i)\bgold\s+(?:buy|sell)\s+now\b`),
		regexp.MustCompile(`(?i)\bscalping\s+(?:buy|sell)\b`),
		regexp.MustCompile(`(?i)\blets?\s+scalping\b`),
	}

	slUpdatePattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:(?:move|update|change|new)\s+)?(?:sl|stop\s*loss)\s+(?:to|at|is)\s*:?\s*` + number)
)

// keywordPattern matches any of the words as a whole word. Word boundaries are spelled out
// instead of \b so non-ASCII synonyms work.
func keywordPattern(words []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
	}
	if len(quoted) == 0 {
		return nil, fmt.Errorf("Пустой список ключевых слов.")
	}
	return regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
}
