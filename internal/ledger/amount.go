package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrMalformedAmount is returned when a base-unit amount is not a non-negative
// decimal integer.
var ErrMalformedAmount = errors.New("malformed amount")

// MaxDecimals is the largest scale the codec accepts. ERC-20 decimals is a
// uint8.
const MaxDecimals = 255

var ten = big.NewInt(10)

// ParseAmount parses a raw base-unit integer. An empty string is zero.
func ParseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %q", ErrMalformedAmount, raw)
	}
	return value, nil
}

// FormatUnits renders a raw base-unit amount as a decimal string scaled by
// 10^decimals, without trailing fractional zeros.
func FormatUnits(raw string, decimals int) (string, error) {
	if err := checkDecimals(decimals); err != nil {
		return "", err
	}
	value, err := ParseAmount(raw)
	if err != nil {
		return "", err
	}
	return formatBig(value, decimals), nil
}

func checkDecimals(decimals int) error {
	if decimals < 0 || decimals > MaxDecimals {
		return fmt.Errorf("%w: decimals %d out of range", ErrMalformedAmount, decimals)
	}
	return nil
}

func formatBig(value *big.Int, decimals int) string {
	if value.Sign() == 0 {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	divisor := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)
	whole, remainder := new(big.Int).QuoRem(value, divisor, new(big.Int))
	if remainder.Sign() == 0 {
		return whole.String()
	}
	fraction := remainder.String()
	if pad := decimals - len(fraction); pad > 0 {
		fraction = strings.Repeat("0", pad) + fraction
	}
	return whole.String() + "." + strings.TrimRight(fraction, "0")
}

// ParseUnits is the inverse of FormatUnits: it rescales "whole[.fraction]" by
// 10^decimals back to a base-unit integer.
func ParseUnits(text string, decimals int) (*big.Int, error) {
	if err := checkDecimals(decimals); err != nil {
		return nil, err
	}
	whole, fraction, _ := strings.Cut(strings.TrimSpace(text), ".")
	if len(fraction) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrMalformedAmount, text, decimals)
	}
	digits := whole + fraction + strings.Repeat("0", decimals-len(fraction))
	if whole == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedAmount, text)
	}
	return ParseAmount(digits)
}

// Fee returns gasPrice * gasUsed scaled by the native decimals. Either input
// being empty yields "0".
func Fee(gasPrice, gasUsed string, decimals int) (string, error) {
	if strings.TrimSpace(gasPrice) == "" || strings.TrimSpace(gasUsed) == "" {
		return "0", nil
	}
	if err := checkDecimals(decimals); err != nil {
		return "", err
	}
	price, err := ParseAmount(gasPrice)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	used, err := ParseAmount(gasUsed)
	if err != nil {
		return "", fmt.Errorf("gas used: %w", err)
	}
	return formatBig(new(big.Int).Mul(price, used), decimals), nil
}
