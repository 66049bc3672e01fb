package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

var amountPattern = regexp.MustCompile(`\d[\d\s.,\x{00a0}]*`)

// currencyTokens maps the symbols and codes seen on job boards to ISO
// currency codes. Longer tokens are checked first.
var currencyTokens = []struct {
	token string
	code  string
}{
	{"usd", "USD"},
	{"eur", "EUR"},
	{"gbp", "GBP"},
	{"pln", "PLN"},
	{"uah", "UAH"},
	{"chf", "CHF"},
	{"zł", "PLN"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
}

// parseSalary interprets a raw salary string such as "3 000 – 5 000 USD"
// or "$120,000". A single amount sets both bounds. Returns ok=false when
// no amount is present.
func parseSalary(raw string) (min, max int, currency string, ok bool) {
	amounts := amountPattern.FindAllString(raw, 2)
	if len(amounts) == 0 {
		return 0, 0, "", false
	}

	min = parseAmount(amounts[0])
	max = min
	if len(amounts) > 1 {
		max = parseAmount(amounts[1])
	}
	if max < min {
		min, max = max, min
	}

	lower := strings.ToLower(raw)
	for _, c := range currencyTokens {
		if strings.Contains(lower, c.token) {
			currency = c.code
			break
		}
	}
	return min, max, currency, true
}

// parseAmount strips grouping separators and truncates any decimal part.
func parseAmount(s string) int {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		// "5.000" is a grouping separator, "5000.50" a decimal point.
		if len(strings.TrimRight(s[i+1:], " ")) != 3 {
			s = s[:i]
		}
	}
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}
