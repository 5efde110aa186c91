package ledger

import (
	"strings"

	"walletcsv/internal/domain"
)

// Classify maps a canonical transaction to exactly one tag. The rules are
// evaluated in order and the first match wins; balanced in and out movements
// mean Trade whatever the function name, since swaps are often routed through
// proxies with opaque method names.
func Classify(tx domain.Transaction) domain.Tag {
	if tx.IsError {
		return domain.TagFailed
	}

	fn := strings.ToLower(tx.FunctionName)
	hasIn, hasOut := directions(tx.Movements)

	switch {
	case strings.Contains(fn, "approve"):
		return domain.TagApproval
	case strings.Contains(fn, "wrap"):
		// also matches "unwrap"
		return domain.TagWrap
	case strings.Contains(fn, "swap") || (hasIn && hasOut):
		return domain.TagTrade
	case tx.Input == domain.PlainInput && len(tx.Movements) > 0:
		return domain.TagTransfer
	case hasIn != hasOut:
		return domain.TagTransfer
	case len(tx.Movements) == 0 && tx.Input != domain.PlainInput:
		return domain.TagContract
	default:
		return domain.TagTransfer
	}
}

func directions(movements []domain.Movement) (hasIn, hasOut bool) {
	for _, movement := range movements {
		switch movement.Direction {
		case domain.DirectionIn:
			hasIn = true
		case domain.DirectionOut:
			hasOut = true
		}
	}
	return hasIn, hasOut
}
