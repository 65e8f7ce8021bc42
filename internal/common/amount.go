package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// decimals is the fixed number of fractional digits every balance and fee
// carries: non-negative fixed-point, 6 decimal places. All arithmetic
// happens on the integer "micro" representation so that results are
// bit-identical across platforms.
const decimals = 6

var scale = int64(math.Pow10(decimals))

// Amount is a fixed-point value with 6 decimal places, represented
// internally as an integer count of 1e-6 units ("micros"). The type can
// hold negative values (ParseAmount accepts a leading '-', Sub can go
// below zero); balances are kept non-negative by the executor's checks.
type Amount struct {
	micros int64
}

// Zero is the additive identity.
var Zero = Amount{}

// AmountFromMicros builds an Amount directly from its micro representation.
func AmountFromMicros(micros int64) Amount {
	return Amount{micros: micros}
}

// AmountFromInt builds an Amount representing a whole number of units.
func AmountFromInt(units int64) Amount {
	return Amount{micros: units * scale}
}

// ParseAmount parses a decimal string such as "100", "100.5" or
// "0.000001" into an Amount. It rejects more than 6 fractional digits so
// that no precision is silently dropped.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Zero, fmt.Errorf("common: empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	parts := strings.SplitN(s, ".", 2)
	whole, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("common: invalid amount %q: %w", s, err)
	}
	var frac int64
	if len(parts) == 2 {
		fracStr := parts[1]
		if len(fracStr) > decimals {
			return Zero, fmt.Errorf("common: amount %q has more than %d fractional digits", s, decimals)
		}
		for len(fracStr) < decimals {
			fracStr += "0"
		}
		frac, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("common: invalid amount %q: %w", s, err)
		}
	}
	micros := whole*scale + frac
	if neg {
		micros = -micros
	}
	return Amount{micros: micros}, nil
}

// MustParseAmount is ParseAmount but panics on error; intended for
// compile-time constants in tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Micros returns the raw 1e-6-unit integer representation.
func (a Amount) Micros() int64 { return a.micros }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{micros: a.micros + b.micros} }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return Amount{micros: a.micros - b.micros} }

// Cmp returns -1, 0 or 1 as a is less than, equal to, or greater than b.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.micros < b.micros:
		return -1
	case a.micros > b.micros:
		return 1
	default:
		return 0
	}
}

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool { return a.micros < 0 }

// GTE reports whether a >= b.
func (a Amount) GTE(b Amount) bool { return a.micros >= b.micros }

// MulFraction multiplies a by num/den using integer math (no floating
// point), truncating toward zero. Used for fee = amount * 0.0001.
func (a Amount) MulFraction(num, den int64) Amount {
	// a.micros * num / den can overflow int64 for pathological inputs;
	// balances in this ledger never approach that range.
	return Amount{micros: (a.micros * num) / den}
}

// Max returns the larger of a and b.
func Max(a, b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// String renders the amount as a fixed 6-decimal-place decimal string,
// e.g. "289.999000". This is also the canonical form the codec hashes, so
// its format must never change without changing every installed state
// hash along with it.
func (a Amount) String() string {
	neg := a.micros < 0
	m := a.micros
	if neg {
		m = -m
	}
	whole := m / scale
	frac := m % scale
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%0*d", sign, whole, decimals, frac)
}

// MarshalJSON writes the amount as its quoted String form, so amounts
// inside JSON-encoded gossip payloads survive the round trip.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON parses the quoted form written by MarshalJSON.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("common: invalid amount %s: %w", b, err)
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
