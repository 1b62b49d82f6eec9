package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var amountStripRE = regexp.MustCompile(`[^\d.,\-]`)
var percentRE = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// datePattern pairs a detection regex with the Go reference-time layout
// used to parse whatever it matches. Order matters: the extractor tries
// these in sequence and the first successful parse wins, which is what
// makes DD/MM vs MM/DD locale-ambiguous (see DESIGN.md open question).
type datePattern struct {
	re     *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), "02/01/2006"}, // DD/MM/YYYY
	{regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`), "01/02/2006"}, // MM/DD/YYYY
	{regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`), "02-01-2006"}, // DD-MM-YYYY
	{regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`), "01-02-2006"}, // MM-DD-YYYY
	{regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`), "02.01.2006"}, // DD.MM.YYYY
	{regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`), "01.02.2006"}, // MM.DD.YYYY
}

// ParseAmount parses a monetary string into an arbitrary-precision decimal,
// disambiguating comma/period per §4.3: with both present, comma is the
// thousands separator; with only a comma, it is the decimal point iff there
// is exactly one and at most two digits follow it.
func ParseAmount(text string) (decimal.Decimal, bool) {
	cleaned := amountStripRE.ReplaceAllString(text, "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseDate tries the registered patterns in order and returns the first
// successful parse plus whether both a DD/MM and MM/DD reading succeeded
// with different results (ambiguous, per the §9 open question).
func ParseDate(text string) (result time.Time, ok bool, ambiguous bool) {
	var ddmm, mmdd time.Time
	var ddmmOk, mmddOk bool

	for i, dp := range datePatterns {
		match := dp.re.FindString(text)
		if match == "" {
			continue
		}
		t, err := time.Parse(dp.layout, match)
		if err != nil {
			continue
		}
		if !ok {
			result = t
			ok = true
		}
		// Track the DD/MM (index 1) and MM/DD (index 2) candidates
		// specifically to detect the ambiguous-date case.
		if i == 1 {
			ddmm, ddmmOk = t, true
		}
		if i == 2 {
			mmdd, mmddOk = t, true
		}
	}

	if ddmmOk && mmddOk && !ddmm.Equal(mmdd) {
		ambiguous = true
	}
	return result, ok, ambiguous
}

// ParsePercentage extracts a percentage's numeric value (e.g. "19%" -> 19.0).
func ParsePercentage(text string) (float64, bool) {
	m := percentRE.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
