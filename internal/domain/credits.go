package domain

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Credits is an amount in hundredths of a credit. 1.00 credit is 100.
type Credits int64

const CreditScale = 100

func (c Credits) Float64() float64 {
	return float64(c) / CreditScale
}

func (c Credits) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/CreditScale, v%CreditScale)
}

// MarshalJSON renders the amount as a two-decimal number.
func (c Credits) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Credits) UnmarshalJSON(data []byte) error {
	parsed, err := ParseCredits(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Credits) MarshalYAML() (any, error) {
	return c.String(), nil
}

func (c Credits) Value() (driver.Value, error) {
	return int64(c), nil
}

func (c *Credits) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*c = Credits(v)
	case int32:
		*c = Credits(v)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan credits: %w", err)
		}
		*c = Credits(n)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("scan credits: %w", err)
		}
		*c = Credits(n)
	case nil:
		*c = 0
	default:
		return fmt.Errorf("scan credits: unsupported type %T", src)
	}
	return nil
}

// ParseCredits reads a decimal amount such as "15", "2.5" or "-0.75".
// More than two fractional digits is rejected rather than rounded.
func ParseCredits(s string) (Credits, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("parse credits: empty amount")
	}

	raw := s
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if !isDigits(whole) || !isDigits(frac) || whole+frac == "" {
		return 0, fmt.Errorf("parse credits %q: not a decimal amount", raw)
	}
	if len(frac) > 2 {
		return 0, fmt.Errorf("parse credits %q: at most two decimal places", raw)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	if whole == "" {
		whole = "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse credits %q: %w", raw, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse credits %q: %w", raw, err)
	}

	v := w*CreditScale + f
	if negative {
		v = -v
	}
	return Credits(v), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CreditsForSeconds converts teaching time into credits at secondsPerCredit,
// rounded half-up to the nearest hundredth.
func CreditsForSeconds(seconds, secondsPerCredit int64) Credits {
	if seconds <= 0 || secondsPerCredit <= 0 {
		return 0
	}
	return Credits((seconds*CreditScale*2 + secondsPerCredit) / (2 * secondsPerCredit))
}

// Percent returns p percent of c rounded half-up to the nearest hundredth.
// Only meaningful for non-negative amounts.
func (c Credits) Percent(p int64) Credits {
	if c <= 0 || p <= 0 {
		return 0
	}
	return Credits((int64(c)*p*2 + 100) / 200)
}

func MinCredits(a, b Credits) Credits {
	if a < b {
		return a
	}
	return b
}
