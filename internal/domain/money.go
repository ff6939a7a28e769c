package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Money is an amount in kobo (minor currency units). All monetary arithmetic
// stays in integers; the two-decimal string form exists only at the edges.
type Money int64

const DefaultCurrency = "NGN"

func Naira(units int64) Money { return Money(units * 100) }

func MoneyFromKobo(kobo int64) Money { return Money(kobo) }

// ParseMoney accepts a fixed-point decimal string with at most two fraction
// digits, e.g. "35000.00" or "2000".
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty money value")
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid money value %q", s)
	}
	kobo := units * 100
	if hasFrac {
		if len(fracPart) == 0 || len(fracPart) > 2 {
			return 0, fmt.Errorf("invalid money value %q: expected at most 2 fraction digits", s)
		}
		frac, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid money value %q", s)
		}
		if len(fracPart) == 1 {
			frac *= 10
		}
		kobo += frac
	}
	if neg {
		kobo = -kobo
	}
	return Money(kobo), nil
}

func (m Money) Kobo() int64 { return int64(m) }

func (m Money) MulCount(n int) Money { return m * Money(n) }

// Percent returns m*p/100 truncated toward zero.
func (m Money) Percent(p int64) Money { return Money(int64(m) * p / 100) }

func (m Money) String() string {
	kobo := int64(m)
	sign := ""
	if kobo < 0 {
		sign = "-"
		kobo = -kobo
	}
	return fmt.Sprintf("%s%d.%02d", sign, kobo/100, kobo%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
