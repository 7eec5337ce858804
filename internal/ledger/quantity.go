package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseQuantity normalizes a stored quantity. Integers and whole floats are
// accepted as-is, strings are trimmed and may use either '.' or ',' as the
// decimal separator, and empty values count as zero. Fractional or negative
// values are rejected.
func ParseQuantity(v any) (int, error) {
	switch q := v.(type) {
	case nil:
		return 0, nil
	case int:
		return checkQuantity(q)
	case int64:
		return checkQuantity(int(q))
	case int32:
		return checkQuantity(int(q))
	case float64:
		return wholeQuantity(q, fmt.Sprint(q))
	case float32:
		return wholeQuantity(float64(q), fmt.Sprint(q))
	case []byte:
		return parseQuantityString(string(q))
	case string:
		return parseQuantityString(q)
	}
	return 0, &ValidationError{Field: "quantity", Message: fmt.Sprintf("unsupported value %v", v)}
}

func parseQuantityString(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return checkQuantity(n)
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, &ValidationError{Field: "quantity", Message: fmt.Sprintf("%q is not a number", s)}
	}
	return wholeQuantity(f, s)
}

func wholeQuantity(f float64, raw string) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &ValidationError{Field: "quantity", Message: fmt.Sprintf("%s is not a whole number", raw)}
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, &ValidationError{Field: "quantity", Message: fmt.Sprintf("%s is out of range", raw)}
	}
	return checkQuantity(int(f))
}

func checkQuantity(n int) (int, error) {
	if n < 0 {
		return 0, &ValidationError{Field: "quantity", Message: fmt.Sprintf("%d is negative", n)}
	}
	return n, nil
}
