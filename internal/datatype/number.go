package datatype

import (
	"math"
	"strconv"
	"strings"
)

// ParseInt parses s as a signed 64-bit integer in canonical form only:
// no sign prefix other than '-', no leading zeros, no surrounding spaces
func ParseInt(s string) (int64, error) {
	if len(s) == 0 || len(s) > 20 {
		return 0, ErrNotInteger
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	if strconv.FormatInt(n, 10) != s {
		return 0, ErrNotInteger
	}
	return n, nil
}

// ParseFloat parses s as a double. inf, +inf and -inf are accepted, NaN is not
func ParseFloat(s string) (float64, error) {
	if len(s) == 0 || strings.TrimSpace(s) != s {
		return 0, ErrNotFloat
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, nil
		}
		return 0, ErrNotFloat
	}
	if math.IsNaN(f) {
		return 0, ErrNotFloat
	}
	return f, nil
}

// FormatFloat renders the result of a float increment: plain decimal notation,
// shortest representation that round-trips, no exponent
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// addInt adds delta to n reporting overflow
func addInt(n, delta int64) (int64, error) {
	if (delta > 0 && n > math.MaxInt64-delta) || (delta < 0 && n < math.MinInt64-delta) {
		return 0, ErrOverflow
	}
	return n + delta, nil
}

// addFloat adds delta to f rejecting results that are not finite
func addFloat(f, delta float64) (float64, error) {
	r := f + delta
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, ErrNaN
	}
	return r, nil
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
