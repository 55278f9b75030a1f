package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Price is a unit price in whole currency units (the shop sells in VND).
// It decodes from JSON numbers and from currency-formatted strings such as
// "12.000đ" and always encodes as a JSON number.
type Price float64

// Float64 returns the price as a float64.
func (p Price) Float64() float64 { return float64(p) }

// UnmarshalJSON accepts numbers, numeric strings and formatted strings.
// null and unparseable values decode to 0.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(ParsePrice(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*p = 0
		return nil
	}
	*p = Price(f)
	return nil
}

// ParsePrice converts a price value to float64.
// Numbers pass through. Strings have every non-digit stripped before parsing,
// so "12.000đ" → 12000 and "1,250,000 VND" → 1250000.
// Anything else, or a string without digits, yields 0.
// Decimal-point strings are not supported: "199000.00" parses as 19900000.
// Send fractional prices as JSON numbers.
func ParsePrice(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case Price:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return ParsePrice(string(x))
		}
		return f
	case string:
		digits := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) && r < unicode.MaxASCII {
				return r
			}
			return -1
		}, x)
		if digits == "" {
			return 0
		}
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// CartTotal sums UnitPrice * Quantity across items. Order does not matter.
func CartTotal(items []LineItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}

// CartCount sums quantities across items.
func CartCount(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
