// Package chainscout loads the list of Blockscout-hosted EVM chains from the
// chainscout registry.
package chainscout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"

	"github.com/patrickmn/go-cache"
)

const (
	DefaultURL = "https://raw.githubusercontent.com/blockscout/chainscout/main/data/chains.json"
	DefaultTTL = time.Hour

	chainsCacheKey = "chains"
	defaultSymbol  = "ETH"
	nativeDecimals = 18
)

type Config struct {
	URL        string
	TTL        time.Duration
	HTTPClient *http.Client
}

type Directory struct {
	url        string
	httpClient *http.Client
	cache      *cache.Cache
}

type entry struct {
	Name           string     `json:"name"`
	IsTestnet      bool       `json:"isTestnet"`
	NativeCurrency string     `json:"native_currency"`
	Logo           string     `json:"logo"`
	Explorers      []explorer `json:"explorers"`
}

type explorer struct {
	URL      string `json:"url"`
	HostedBy string `json:"hostedBy"`
}

func NewDirectory(cfg Config) *Directory {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Directory{
		url:        cfg.URL,
		httpClient: cfg.HTTPClient,
		cache:      cache.New(cfg.TTL, 2*cfg.TTL),
	}
}

// Chains returns every chain with a Blockscout-hosted explorer, sorted by
// name.
func (d *Directory) Chains(ctx context.Context) ([]domain.Chain, error) {
	if cached, ok := d.cache.Get(chainsCacheKey); ok {
		return cached.([]domain.Chain), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chain list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch chain list: HTTP %d", resp.StatusCode)
	}

	var registry map[string]entry
	if err := json.NewDecoder(resp.Body).Decode(&registry); err != nil {
		return nil, fmt.Errorf("decode chain list: %w", err)
	}
	chains := parseRegistry(registry)
	if len(chains) == 0 {
		return nil, errors.New("chain list has no blockscout-hosted explorers")
	}
	d.cache.SetDefault(chainsCacheKey, chains)
	return chains, nil
}

func (d *Directory) Find(ctx context.Context, name string) (domain.Chain, error) {
	chains, err := d.Chains(ctx)
	if err != nil {
		return domain.Chain{}, err
	}
	return application.FindChain(chains, name)
}

// Invalidate drops the cached chain list.
func (d *Directory) Invalidate() {
	d.cache.Delete(chainsCacheKey)
}

func parseRegistry(registry map[string]entry) []domain.Chain {
	chains := make([]domain.Chain, 0, len(registry))
	for chainID, e := range registry {
		hosted, ok := blockscoutExplorer(e.Explorers)
		if !ok {
			continue
		}
		symbol := strings.TrimSpace(e.NativeCurrency)
		if symbol == "" {
			symbol = defaultSymbol
		}
		chains = append(chains, domain.Chain{
			ID:        chainID,
			Name:      e.Name,
			Symbol:    symbol,
			Decimals:  nativeDecimals,
			APIURL:    strings.TrimRight(hosted.URL, "/") + "/api",
			Logo:      e.Logo,
			IsTestnet: e.IsTestnet,
		})
	}
	sort.Slice(chains, func(i, j int) bool {
		a, b := strings.ToLower(chains[i].Name), strings.ToLower(chains[j].Name)
		if a == b {
			return chains[i].ID < chains[j].ID
		}
		return a < b
	})
	return chains
}

func blockscoutExplorer(explorers []explorer) (explorer, bool) {
	for _, e := range explorers {
		if e.HostedBy == "blockscout" {
			return e, true
		}
	}
	return explorer{}, false
}
