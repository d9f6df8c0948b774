package utils

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// CoerceAmount converts the loosely-typed amount field of a stored record
// into an integer amount. Records come back from the document store as JSON,
// so amounts may be float64, string, or already integer-shaped.
func CoerceAmount(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("amount %v is not an integer", n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("amount %q is not numeric", n)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("amount has unsupported type %T", v)
}

// CoerceNumber converts a loosely-typed numeric field into a float64.
func CoerceNumber(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", n)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("value has unsupported type %T", v)
}

// Round2 rounds a monetary value to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
