// internal/extractor/normalize.go
package extractor

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// "1.2M", "500K", "3,4 k", "2B"
	latinAbbrevPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*([kmb])(?:\b|[^a-z])`)
	// "123만", "1.5억", "3천", "1.2万", "3億"
	cjkUnitPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*([천만억千万萬億亿])`)
	// "123,456", "1 234 567", "42"
	plainNumberPattern = regexp.MustCompile(`\d{1,3}(?:[,.\s]\d{3})+|\d+`)

	latinMultipliers = map[string]float64{"k": 1e3, "m": 1e6, "b": 1e9}
	cjkMultipliers   = map[string]float64{
		"천": 1e3, "만": 1e4, "억": 1e8,
		"千": 1e3, "万": 1e4, "萬": 1e4, "億": 1e8, "亿": 1e8,
	}

	// count words that may follow a bare number directly: "1,234회", "1,234回視聴"
	countSuffixes = []rune{'회', '回', '次'}
)

// ParseViewCount normalizes displayed view-count text to an absolute number.
// It returns nil when no count can be read.
func ParseViewCount(text string) *int64 {
	text = strings.TrimSpace(norm.NFKC.String(text))
	if text == "" {
		return nil
	}

	if m := cjkUnitPattern.FindStringSubmatch(text); m != nil {
		return scaled(m[1], cjkMultipliers[m[2]])
	}
	if m := latinAbbrevPattern.FindStringSubmatch(text + " "); m != nil {
		return scaled(m[1], latinMultipliers[strings.ToLower(m[2])])
	}
	if loc := plainNumberPattern.FindStringIndex(text); loc != nil {
		if !plainNumberEnds(text[loc[1]:]) {
			return nil
		}
		m := text[loc[0]:loc[1]]
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, m)
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

// plainNumberEnds reports whether a bare number is complete: it is not cut
// out of a decimal and not glued to a unit that was not recognized.
func plainNumberEnds(rest string) bool {
	r, size := utf8.DecodeRuneInString(rest)
	if size == 0 {
		return true
	}
	if r == '.' || r == ',' {
		next, _ := utf8.DecodeRuneInString(rest[size:])
		return !unicode.IsDigit(next)
	}
	if !unicode.IsLetter(r) {
		return true
	}
	for _, s := range countSuffixes {
		if r == s {
			return true
		}
	}
	return false
}

func scaled(number string, multiplier float64) *int64 {
	f, err := strconv.ParseFloat(strings.Replace(number, ",", ".", 1), 64)
	if err != nil || multiplier == 0 {
		return nil
	}
	v := math.Round(f * multiplier)
	if math.IsNaN(v) || v < 0 || v >= math.MaxInt64 {
		return nil
	}
	n := int64(v)
	return &n
}

type relativeUnit struct {
	pattern *regexp.Regexp
	unit    time.Duration
}

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

var relativeUnits = []relativeUnit{
	{regexp.MustCompile(`(?i)(\d+)\s*seconds?\s+ago`), time.Second},
	{regexp.MustCompile(`(?i)(\d+)\s*minutes?\s+ago`), time.Minute},
	{regexp.MustCompile(`(?i)(\d+)\s*hours?\s+ago`), time.Hour},
	{regexp.MustCompile(`(?i)(\d+)\s*days?\s+ago`), day},
	{regexp.MustCompile(`(?i)(\d+)\s*weeks?\s+ago`), week},
	{regexp.MustCompile(`(?i)(\d+)\s*months?\s+ago`), month},
	{regexp.MustCompile(`(?i)(\d+)\s*years?\s+ago`), year},
	{regexp.MustCompile(`(\d+)\s*초\s*전`), time.Second},
	{regexp.MustCompile(`(\d+)\s*분\s*전`), time.Minute},
	{regexp.MustCompile(`(\d+)\s*시간\s*전`), time.Hour},
	{regexp.MustCompile(`(\d+)\s*일\s*전`), day},
	{regexp.MustCompile(`(\d+)\s*주\s*전`), week},
	{regexp.MustCompile(`(\d+)\s*(?:개월|달)\s*전`), month},
	{regexp.MustCompile(`(\d+)\s*년\s*전`), year},
}

// IsRelativeDate reports whether text reads like "3 days ago" or "3일 전".
func IsRelativeDate(text string) bool {
	_, ok := RelativeDate(text, time.Now())
	return ok
}

// RelativeDate converts upload recency text into an approximate timestamp.
// Months count as 30 days and years as 365.
func RelativeDate(text string, now time.Time) (time.Time, bool) {
	text = norm.NFKC.String(text)
	for _, ru := range relativeUnits {
		m := ru.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return now.Add(-time.Duration(n) * ru.unit), true
	}
	return time.Time{}, false
}
