// Package normalize converts loosely typed values from extracted records into
// numbers and fills the record keys downstream writers expect.
package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	millionsPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mill`)
	thousandsPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mil`)
	numberPattern    = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// IsSentinel reports whether s stands for "no value".
func IsSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none", "-":
		return true
	}
	return false
}

// ToNumber converts v to a float64. Strings such as "15 millones de pesos" or
// "500 mil" are scaled by their Spanish magnitude word; any other string yields
// its first number. The second return value is false when v holds no usable
// number. Booleans are not numbers.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return parseNumber(n.String())
		}
		return f, true
	case string:
		return parseNumber(n)
	default:
		return 0, false
	}
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ToLower(s), ",", ""))
	if IsSentinel(s) {
		return 0, false
	}
	if m := millionsPattern.FindStringSubmatch(s); m != nil {
		return scaled(m[1], 1_000_000)
	}
	if m := thousandsPattern.FindStringSubmatch(s); m != nil {
		return scaled(m[1], 1_000)
	}
	if m := numberPattern.FindString(s); m != "" {
		return scaled(m, 1)
	}
	return 0, false
}

func scaled(digits string, factor float64) (float64, bool) {
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return f * factor, true
}

// Value is ToNumber for map values: a usable number as float64, otherwise nil.
func Value(v any) any {
	if f, ok := ToNumber(v); ok {
		return f
	}
	return nil
}
