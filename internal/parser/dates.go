package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// parseDateLayouts tries each layout in order against raw.
func parseDateLayouts(raw string, layouts ...string) (civil.Date, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognized date %q", raw)
}

// spanishMonths covers the month names issuers spell out in narrative
// templates.
var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

var (
	// "5 de enero de 2026", "05 de Enero del 2026"
	spanishDatePattern = regexp.MustCompile(`(?i)(\d{1,2})\s+de\s+([a-záéíóúñ]+)\s+(?:del|de)\s+(\d{4})`)

	// "05/01/2026" in day/month/year order
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
)

// findSpanishDate locates a written-out date in text. found is false when no
// token exists at all; a non-nil error means a token exists but names an
// impossible date, which callers must treat as unparsable rather than
// falling back to the received timestamp.
func findSpanishDate(text string) (date civil.Date, found bool, err error) {
	m := spanishDatePattern.FindStringSubmatch(text)
	if m == nil {
		return civil.Date{}, false, nil
	}
	month, ok := spanishMonths[strings.ToLower(m[2])]
	if !ok {
		return civil.Date{}, true, fmt.Errorf("unknown month %q", m[2])
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	d := civil.Date{Year: year, Month: month, Day: day}
	if !d.IsValid() {
		return civil.Date{}, true, fmt.Errorf("impossible date %q", m[0])
	}
	return d, true, nil
}

// findNumericDate locates a dd/mm/yyyy token in text. Same contract as
// findSpanishDate.
func findNumericDate(text string) (date civil.Date, found bool, err error) {
	m := numericDatePattern.FindStringSubmatch(text)
	if m == nil {
		return civil.Date{}, false, nil
	}
	d, err := parseDateLayouts(m[1], "02/01/2006", "2/1/2006")
	if err != nil {
		return civil.Date{}, true, err
	}
	return d, true, nil
}
