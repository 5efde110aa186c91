package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNoAddress      = errors.New("no wallet address set")
	ErrInvalidAddress = errors.New("invalid address format, must be 0x followed by 40 hex characters")
)

// NormalizeAddress validates a 0x-prefixed wallet address and returns it in
// lowercase.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoAddress
	}
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, raw)
	}
	return strings.ToLower(common.HexToAddress(raw).Hex()), nil
}
