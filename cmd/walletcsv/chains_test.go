package main

import (
	"testing"

	"walletcsv/internal/domain"
)

func TestFilterChains(t *testing.T) {
	chains := []domain.Chain{
		{ID: "1", Name: "Ethereum"},
		{ID: "11155111", Name: "Ethereum Sepolia", IsTestnet: true},
		{ID: "10", Name: "OP Mainnet"},
	}

	if got := filterChains(chains, false, nil); len(got) != 2 || got[1].ID != "10" {
		t.Fatalf("unexpected mainnets %+v", got)
	}
	if got := filterChains(chains, true, []string{"ethereum"}); len(got) != 2 {
		t.Fatalf("expected both ethereum chains, got %+v", got)
	}
	if got := filterChains(chains, false, []string{"sepolia"}); len(got) != 0 {
		t.Fatalf("testnet should be filtered, got %+v", got)
	}
}
