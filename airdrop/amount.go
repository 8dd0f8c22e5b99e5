package airdrop

import (
	"fmt"
	"math/big"
	"strings"
)

// NanoDecimals is the number of fractional digits of a jetton amount given in
// whole tokens (1 token = 10^9 nano units).
const NanoDecimals = 9

// MaxDecimals bounds the number of decimals a token may declare. EVM tokens
// use up to 18, anything beyond 36 is a configuration error.
const MaxDecimals = 36

// ParseAmount converts a decimal amount string such as "12", "12.5" or ".25"
// into the smallest token unit, scaling it by 10^decimals. Signs, exponents and
// more fractional digits than `decimals` are rejected.
func ParseAmount(s string, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return nil, fmt.Errorf("number of decimals must be between 0 and %d, got %d", MaxDecimals, decimals)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is empty")
	}

	whole, frac, hasPoint := strings.Cut(s, ".")
	if hasPoint && whole == "" && frac == "" {
		return nil, fmt.Errorf("amount %q has no digits", s)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, fmt.Errorf("amount %q is not a non-negative decimal number", s)
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d fractional digits", s, decimals)
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	amount, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not a valid number", s)
	}
	return amount, nil
}

// FormatAmount renders an amount given in the smallest unit as a decimal
// string with trailing fractional zeros removed.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	s := amount.String()
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
