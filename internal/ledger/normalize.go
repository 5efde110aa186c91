package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"walletcsv/internal/domain"
)

// ErrChainIncomplete is returned when a chain descriptor lacks the native
// symbol or decimals.
var ErrChainIncomplete = errors.New("chain descriptor is incomplete")

const defaultTokenDecimals = 18

// Normalizer turns raw feed records into movements relative to one wallet.
type Normalizer struct {
	chain   domain.Chain
	address string
	scam    ScamFilter
}

// NewNormalizer builds a normalizer for address on chain. A nil filter means
// DefaultScamFilter.
func NewNormalizer(chain domain.Chain, address string, scam ScamFilter) (*Normalizer, error) {
	if err := ValidateChain(chain); err != nil {
		return nil, err
	}
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("wallet address is required")
	}
	if scam == nil {
		scam = DefaultScamFilter
	}
	return &Normalizer{
		chain:   chain,
		address: strings.ToLower(strings.TrimSpace(address)),
		scam:    scam,
	}, nil
}

// ValidateChain checks that the native asset is fully described. Zero
// decimals is a valid scale.
func ValidateChain(chain domain.Chain) error {
	if strings.TrimSpace(chain.Symbol) == "" {
		return fmt.Errorf("%w: missing symbol", ErrChainIncomplete)
	}
	if chain.Decimals < 0 || chain.Decimals > MaxDecimals {
		return fmt.Errorf("%w: invalid decimals %d for %s", ErrChainIncomplete, chain.Decimals, chain.Symbol)
	}
	return nil
}

// Address returns the lowercase wallet address.
func (n *Normalizer) Address() string {
	return n.address
}

// Plain returns the native movement of a top-level transaction, if any.
func (n *Normalizer) Plain(record domain.PlainTransfer) (domain.Movement, bool) {
	if isZeroValue(record.Value) {
		return domain.Movement{}, false
	}
	return n.native(record.From, record.Value), true
}

// Internal returns the native movement of a contract-triggered transfer.
// Reverted internal calls move nothing.
func (n *Normalizer) Internal(record domain.InternalTransfer) (domain.Movement, bool) {
	if parseFlag(record.IsError) || isZeroValue(record.Value) {
		return domain.Movement{}, false
	}
	return n.native(record.From, record.Value), true
}

// Token returns the token movement of a token transfer unless the token is
// flagged by the scam filter.
func (n *Normalizer) Token(record domain.TokenTransfer) (domain.Movement, bool) {
	if n.scam.IsScam(record.TokenSymbol, record.TokenName) || isZeroValue(record.Value) {
		return domain.Movement{}, false
	}
	return domain.Movement{
		Direction: n.direction(record.From),
		Amount:    strings.TrimSpace(record.Value),
		Currency:  record.TokenSymbol,
		Decimals:  tokenDecimals(record.TokenDecimal),
	}, true
}

func (n *Normalizer) native(from, value string) domain.Movement {
	return domain.Movement{
		Direction: n.direction(from),
		Amount:    strings.TrimSpace(value),
		Currency:  n.chain.Symbol,
		Decimals:  n.chain.Decimals,
	}
}

func (n *Normalizer) direction(from string) domain.Direction {
	if strings.EqualFold(strings.TrimSpace(from), n.address) {
		return domain.DirectionOut
	}
	return domain.DirectionIn
}

func tokenDecimals(raw string) int {
	decimals, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || decimals < 0 || decimals > MaxDecimals {
		return defaultTokenDecimals
	}
	return decimals
}

// isZeroValue reports an empty or all-zero amount. Anything else, including
// malformed text, is kept so that projection fails loudly on it.
func isZeroValue(raw string) bool {
	return strings.TrimLeft(strings.TrimSpace(raw), "0") == ""
}

func parseFlag(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "1" || strings.EqualFold(raw, "true")
}
