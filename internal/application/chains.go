package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"walletcsv/internal/domain"
)

var ErrChainNotFound = errors.New("chain not found")

type ChainDirectory interface {
	Chains(ctx context.Context) ([]domain.Chain, error)
}

// FindChain returns the chain whose name equals name, ignoring case.
func FindChain(chains []domain.Chain, name string) (domain.Chain, error) {
	name = strings.TrimSpace(name)
	for _, chain := range chains {
		if strings.EqualFold(chain.Name, name) {
			return chain, nil
		}
	}
	return domain.Chain{}, fmt.Errorf("%w: %q", ErrChainNotFound, name)
}

// MatchChains returns every chain whose name contains any of names, ignoring
// case. An empty names list matches all chains.
func MatchChains(chains []domain.Chain, names []string) []domain.Chain {
	if len(names) == 0 {
		return chains
	}
	var matched []domain.Chain
	for _, chain := range chains {
		lower := strings.ToLower(chain.Name)
		for _, name := range names {
			if name = strings.ToLower(strings.TrimSpace(name)); name != "" && strings.Contains(lower, name) {
				matched = append(matched, chain)
				break
			}
		}
	}
	return matched
}
