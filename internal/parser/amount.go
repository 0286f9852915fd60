package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount converts an issuer-formatted amount token into a decimal with
// at most two fraction digits. Both regional conventions appear in the wild
// ("1.234,56" and "1,234.56"): when both separator kinds occur the last one
// is the decimal point; with a single kind, the last separator counts as the
// decimal point only when followed by one or two digits, while a trailing
// three-digit group is a thousands separator. Extra precision is truncated,
// never rounded. Sign characters are dropped; direction carries the sign.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := collapseSpaces(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return decimal.Zero, errors.New("empty amount")
	}

	var cleaned string
	if lastSep := strings.LastIndexAny(s, ".,"); lastSep >= 0 {
		intPart := stripSeparators(s[:lastSep])
		frac := s[lastSep+1:]
		mixed := strings.ContainsRune(s, '.') && strings.ContainsRune(s, ',')
		if mixed || (len(frac) >= 1 && len(frac) <= 2) {
			cleaned = intPart + "." + frac
		} else {
			cleaned = intPart + frac
		}
	} else {
		cleaned = s
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return d.Truncate(2), nil
}

func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", "")
}

// firstCapture returns the first submatch of the first pattern in the chain
// that hits. Pattern order implements the template-drift fallback: most
// specific label first, loosest last.
func firstCapture(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return collapseSpaces(m[1])
		}
	}
	return ""
}

// firstAmount runs the pattern chain and parses the first capture that is a
// well-formed amount; captures that fail to parse fall through to the next
// pattern.
func firstAmount(patterns []*regexp.Regexp, text string) (decimal.Decimal, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, err := parseAmount(m[1]); err == nil {
			return d, true
		}
	}
	return decimal.Zero, false
}
