package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"walletcsv/internal/domain"
)

type Prober interface {
	Probe(ctx context.Context, chain domain.Chain, address string) (int, error)
}

type ScanConfig struct {
	BatchSize int
	Delay     time.Duration
}

type ChainActivity struct {
	Chain domain.Chain `json:"chain"`
	Count int          `json:"count"`
}

type ScanResult struct {
	Scanned int             `json:"scanned"`
	Active  []ChainActivity `json:"active"`
	Errors  []string        `json:"errors,omitempty"`
}

// Scanner probes chains for any activity of one wallet, a few chains at a
// time.
type Scanner struct {
	prober Prober
	cfg    ScanConfig
}

func NewScanner(prober Prober, cfg ScanConfig) (*Scanner, error) {
	if prober == nil {
		return nil, errors.New("prober is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Scanner{prober: prober, cfg: cfg}, nil
}

func (s *Scanner) Scan(ctx context.Context, chains []domain.Chain, address string) (ScanResult, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return ScanResult{}, err
	}

	result := ScanResult{Scanned: len(chains)}
	for start := 0; start < len(chains); start += s.cfg.BatchSize {
		batch := chains[start:min(start+s.cfg.BatchSize, len(chains))]
		counts := make([]int, len(batch))
		errs := make([]error, len(batch))

		var wg sync.WaitGroup
		for i, chain := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				counts[i], errs[i] = s.prober.Probe(ctx, chain, addr)
			}()
		}
		wg.Wait()

		for i, chain := range batch {
			switch {
			case errs[i] != nil:
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", chain.Name, errs[i]))
			case counts[i] > 0:
				result.Active = append(result.Active, ChainActivity{Chain: chain, Count: counts[i]})
			}
		}

		if start+s.cfg.BatchSize < len(chains) && s.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.cfg.Delay):
			}
		}
	}
	return result, nil
}

// Summary renders the result the way the assistant reports it.
func (r ScanResult) Summary(address string) string {
	if len(r.Active) == 0 {
		msg := fmt.Sprintf("Scanned %d chains. No transaction activity found for %s.", r.Scanned, address)
		if len(r.Errors) > 0 {
			msg += fmt.Sprintf(" (%d chains had errors)", len(r.Errors))
		}
		return msg
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found activity on %d of %d chains scanned:", len(r.Active), r.Scanned)
	for _, a := range r.Active {
		fmt.Fprintf(&b, "\n- %s (%s)", a.Chain.Name, a.Chain.Symbol)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "\n(%d chains had scan errors)", len(r.Errors))
	}
	return b.String()
}
