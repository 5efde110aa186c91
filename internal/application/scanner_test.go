package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"walletcsv/internal/domain"
)

type mockProber struct {
	mu       sync.Mutex
	counts   map[string]int
	failing  map[string]bool
	inFlight int
	peak     int
}

func (m *mockProber) Probe(ctx context.Context, chain domain.Chain, address string) (int, error) {
	m.mu.Lock()
	m.inFlight++
	m.peak = max(m.peak, m.inFlight)
	m.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	if m.failing[chain.Name] {
		return 0, errors.New("HTTP 502")
	}
	return m.counts[chain.Name], nil
}

func chainsNamed(names ...string) []domain.Chain {
	chains := make([]domain.Chain, 0, len(names))
	for _, name := range names {
		chains = append(chains, domain.Chain{Name: name, Symbol: strings.ToUpper(name[:3]), Decimals: 18})
	}
	return chains
}

func TestScanner_Scan(t *testing.T) {
	prober := &mockProber{
		counts:  map[string]int{"Gnosis": 1, "Optimism": 1},
		failing: map[string]bool{"Base": true},
	}
	scanner, err := NewScanner(prober, ScanConfig{BatchSize: 2, Delay: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}

	chains := chainsNamed("Arbitrum", "Base", "Celo", "Gnosis", "Optimism")
	result, err := scanner.Scan(context.Background(), chains, testWallet)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if result.Scanned != 5 || len(result.Active) != 2 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Active[0].Chain.Name != "Gnosis" || result.Active[1].Chain.Name != "Optimism" {
		t.Fatalf("active chains out of order: %+v", result.Active)
	}
	if prober.peak > 2 {
		t.Fatalf("expected at most 2 concurrent probes, saw %d", prober.peak)
	}

	summary := result.Summary(testWallet)
	if !strings.HasPrefix(summary, "Found activity on 2 of 5 chains scanned:") || !strings.Contains(summary, "(1 chains had scan errors)") {
		t.Fatalf("unexpected summary %q", summary)
	}
}

func TestScanner_NoActivity(t *testing.T) {
	scanner, _ := NewScanner(&mockProber{}, ScanConfig{})
	result, err := scanner.Scan(context.Background(), chainsNamed("Ethereum"), testWallet)
	if err != nil {
		t.Fatal(err)
	}
	want := "Scanned 1 chains. No transaction activity found for " + testWallet + "."
	if got := result.Summary(testWallet); got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
}

func TestScanner_RequiresAddress(t *testing.T) {
	scanner, _ := NewScanner(&mockProber{}, ScanConfig{})
	if _, err := scanner.Scan(context.Background(), chainsNamed("Ethereum"), ""); !errors.Is(err, ErrNoAddress) {
		t.Fatalf("expected ErrNoAddress, got %v", err)
	}
}

func TestScanner_StopsOnCancel(t *testing.T) {
	scanner, _ := NewScanner(&mockProber{}, ScanConfig{BatchSize: 1, Delay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := scanner.Scan(ctx, chainsNamed("Ethereum", "Gnosis"), testWallet)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestMatchAndFindChains(t *testing.T) {
	chains := chainsNamed("Ethereum", "Ethereum Classic", "Polygon PoS")
	if got := MatchChains(chains, []string{"ethereum"}); len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got := MatchChains(chains, nil); len(got) != 3 {
		t.Fatalf("empty names should match all, got %d", len(got))
	}
	chain, err := FindChain(chains, "polygon pos")
	if err != nil || chain.Name != "Polygon PoS" {
		t.Fatalf("FindChain = %+v, %v", chain, err)
	}
	if _, err := FindChain(chains, "Polygon"); !errors.Is(err, ErrChainNotFound) {
		t.Fatalf("expected ErrChainNotFound, got %v", err)
	}
}
