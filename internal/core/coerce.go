package core

// coerce.go turns loosely typed spreadsheet cells into record values.
//
// Source exports mix locales freely:
//   - "1.234" is one thousand two hundred thirty-four (dot grouping)
//   - "12,50" is twelve and a half (decimal comma)
//   - "1.234,56" combines both
//   - Booleans arrive as Ja/yes/x/1
//
// Coercion never fails: unparsable or non-finite values resolve to the
// caller's fallback. Results are memoized per Coercer because the same
// handful of values repeat across tens of thousands of rows.

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of distinct values memoized per cache.
const DefaultCacheSize = 4096

// numericPrefixRegex matches the leading number of a normalized value.
// Trailing garbage ("12 €", "3 Stk") is ignored.
var numericPrefixRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// intPrefixRegex matches the leading integer of a normalized value.
var intPrefixRegex = regexp.MustCompile(`^[+-]?\d+`)

// truthyTokens are the accepted boolean-like spellings (compared lowercased).
var truthyTokens = map[string]bool{
	"yes":  true,
	"true": true,
	"1":    true,
	"ja":   true,
	"y":    true,
	"x":    true,
}

// Coercer converts cells to typed values with memoization.
// Safe for concurrent use.
type Coercer struct {
	ints   *lru.Cache[string, int]
	floats *lru.Cache[string, float64]
	bools  *lru.Cache[string, bool]
}

// NewCoercer creates a Coercer whose caches hold up to size entries each.
func NewCoercer(size int) (*Coercer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	ints, err := lru.New[string, int](size)
	if err != nil {
		return nil, fmt.Errorf("int cache: %w", err)
	}
	floats, err := lru.New[string, float64](size)
	if err != nil {
		return nil, fmt.Errorf("float cache: %w", err)
	}
	bools, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("bool cache: %w", err)
	}
	return &Coercer{ints: ints, floats: floats, bools: bools}, nil
}

// Clear drops all memoized values.
func (c *Coercer) Clear() {
	c.ints.Purge()
	c.floats.Purge()
	c.bools.Purge()
}

// Len returns the total number of memoized entries across caches.
func (c *Coercer) Len() int {
	return c.ints.Len() + c.floats.Len() + c.bools.Len()
}

// Int coerces v to an integer, truncating any fraction.
func (c *Coercer) Int(v CellValue, fallback int) int {
	switch v.Kind {
	case CellNumber:
		if math.IsNaN(v.Num) || v.Num >= math.MaxInt || v.Num < math.MinInt {
			return fallback
		}
		return int(v.Num)
	case CellBool:
		if v.Bool {
			return 1
		}
		return 0
	case CellString:
	default:
		return fallback
	}

	key := stripSpace(v.Str)
	if key == "" {
		return fallback
	}
	if n, ok := c.ints.Get(key); ok {
		return n
	}

	m := intPrefixRegex.FindString(NormalizeNumber(key))
	if m == "" {
		return fallback
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return fallback
	}
	c.ints.Add(key, n)
	return n
}

// Float coerces v to a finite float.
func (c *Coercer) Float(v CellValue, fallback float64) float64 {
	switch v.Kind {
	case CellNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return fallback
		}
		return v.Num
	case CellBool:
		if v.Bool {
			return 1
		}
		return 0
	case CellString:
	default:
		return fallback
	}

	key := stripSpace(v.Str)
	if key == "" {
		return fallback
	}
	if f, ok := c.floats.Get(key); ok {
		return f
	}

	m := numericPrefixRegex.FindString(NormalizeNumber(key))
	if m == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	c.floats.Add(key, f)
	return f
}

// Bool coerces v to a boolean. Anything other than a truthy token is false.
func (c *Coercer) Bool(v CellValue) bool {
	switch v.Kind {
	case CellBool:
		return v.Bool
	case CellEmpty:
		return false
	}

	key := strings.ToLower(strings.TrimSpace(v.Text()))
	if key == "" {
		return false
	}
	if b, ok := c.bools.Get(key); ok {
		return b
	}
	b := truthyTokens[key]
	c.bools.Add(key, b)
	return b
}

// IsTruthy reports whether s is one of the boolean-like yes tokens.
func IsTruthy(s string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(s))]
}

// NormalizeNumber rewrites a locale-formatted number into Go syntax:
// whitespace is removed, a dot followed by exactly three digits and then a
// non-digit (or the end) is dropped as a thousands separator, and a decimal
// comma becomes a point.
func NormalizeNumber(s string) string {
	s = stripSpace(s)
	if strings.IndexByte(s, '.') >= 0 {
		var b strings.Builder
		b.Grow(len(s))
		for i := 0; i < len(s); i++ {
			if s[i] == '.' && isGroupingDot(s, i) {
				continue
			}
			b.WriteByte(s[i])
		}
		s = b.String()
	}
	return strings.ReplaceAll(s, ",", ".")
}

// isGroupingDot reports whether the dot at s[i] is followed by exactly three
// digits and then a non-digit or the end of the string.
func isGroupingDot(s string, i int) bool {
	if i+4 > len(s) {
		return false
	}
	for j := i + 1; j <= i+3; j++ {
		if !isDigit(s[j]) {
			return false
		}
	}
	return i+4 == len(s) || !isDigit(s[i+4])
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// stripSpace removes all Unicode whitespace.
func stripSpace(s string) string {
	if strings.IndexFunc(s, unicode.IsSpace) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Unwraps Excel's text-forcing formula ("=\"00123\"")
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	}
	return s
}
