package utils

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid duration")

var durationUnits = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
	'w': 7 * 24 * time.Hour,
}

// ParseDuration accepts "<integer><unit>" with unit one of s, m, h, d, w.
// Unit letters are case-insensitive. Signs, spaces, decimals and compound
// values such as "1h30m" are rejected, as is a zero amount.
func ParseDuration(expr string) (time.Duration, error) {
	expr = strings.ToLower(expr)
	if len(expr) < 2 {
		return 0, ErrInvalidDuration
	}
	unit, ok := durationUnits[expr[len(expr)-1]]
	if !ok {
		return 0, ErrInvalidDuration
	}
	digits := expr[:len(expr)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, ErrInvalidDuration
		}
	}
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || amount <= 0 {
		return 0, ErrInvalidDuration
	}
	if amount > math.MaxInt64/int64(unit) {
		return 0, ErrInvalidDuration
	}
	return time.Duration(amount) * unit, nil
}
