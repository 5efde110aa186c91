// Package blockscout reads the account history feeds of a Blockscout-hosted
// explorer through its Etherscan-compatible API.
package blockscout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"walletcsv/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	DefaultPageSize     = 10000
	DefaultRateInterval = 200 * time.Millisecond

	actionPlain    = "txlist"
	actionInternal = "txlistinternal"
	actionTokens   = "tokentx"
)

// ErrCancelled is returned alongside partial feeds when the context ends
// mid-pagination.
var ErrCancelled = errors.New("fetch cancelled")

type Config struct {
	PageSize     int
	RateInterval time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	httpClient   *http.Client
	pageSize     int
	rateInterval time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = DefaultRateInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{httpClient: cfg.HTTPClient, pageSize: cfg.PageSize, rateInterval: cfg.RateInterval}
}

// FetchFeeds pulls the plain, token and internal feeds of address
// concurrently. When ctx is cancelled the records fetched so far are returned
// with Partial set and an error wrapping ErrCancelled.
func (c *Client) FetchFeeds(ctx context.Context, chain domain.Chain, address string) (domain.Feeds, error) {
	if strings.TrimSpace(chain.APIURL) == "" {
		return domain.Feeds{}, fmt.Errorf("chain %s has no explorer api url", chain.Name)
	}
	addr := strings.ToLower(address)

	ctx, span := otel.Tracer("walletcsv/blockscout").Start(ctx, "blockscout.fetch_feeds")
	defer span.End()
	span.SetAttributes(attribute.String("chain.id", chain.ID), attribute.String("address", addr))

	var (
		feeds                       domain.Feeds
		plainErr, tokenErr, intlErr error
		wg                          sync.WaitGroup
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		feeds.Plain, plainErr = fetchPaginated[domain.PlainTransfer](ctx, c, chain.APIURL, actionPlain, addr)
	}()
	go func() {
		defer wg.Done()
		feeds.Tokens, tokenErr = fetchPaginated[domain.TokenTransfer](ctx, c, chain.APIURL, actionTokens, addr)
	}()
	go func() {
		defer wg.Done()
		feeds.Internal, intlErr = fetchPaginated[domain.InternalTransfer](ctx, c, chain.APIURL, actionInternal, addr)
	}()
	wg.Wait()

	span.SetAttributes(
		attribute.Int("feed.plain", len(feeds.Plain)),
		attribute.Int("feed.tokens", len(feeds.Tokens)),
		attribute.Int("feed.internal", len(feeds.Internal)),
	)

	if err := ctx.Err(); err != nil {
		feeds.Partial = true
		span.SetAttributes(attribute.Bool("partial", true))
		return feeds, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if err := errors.Join(plainErr, tokenErr, intlErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Feeds{}, err
	}
	return feeds, nil
}

// Probe returns how many records a one-record txlist page holds, i.e. 1 if
// address has any activity on chain.
func (c *Client) Probe(ctx context.Context, chain domain.Chain, address string) (int, error) {
	records, _, err := fetchPage[domain.PlainTransfer](ctx, c, chain.APIURL, actionPlain, strings.ToLower(address), 1, 1)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func fetchPaginated[T any](ctx context.Context, c *Client, apiURL, action, address string) ([]T, error) {
	limiter := rate.NewLimiter(rate.Every(c.rateInterval), 1)
	var results []T
	for page := 1; ; page++ {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return results, nil
			}
			return results, fmt.Errorf("rate limit: %w", err)
		}
		records, more, err := fetchPage[T](ctx, c, apiURL, action, address, page, c.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return results, nil
			}
			return results, err
		}
		results = append(results, records...)
		if !more || len(records) < c.pageSize {
			return results, nil
		}
	}
}

// fetchPage returns the records of one page. more is false when the explorer
// signalled the end of the feed.
func fetchPage[T any](ctx context.Context, c *Client, apiURL, action, address string, page, offset int) ([]T, bool, error) {
	ctx, span := otel.Tracer("walletcsv/blockscout").Start(ctx, "blockscout.fetch_page")
	defer span.End()
	span.SetAttributes(attribute.String("action", action), attribute.Int("page", page))

	query := url.Values{}
	query.Set("module", "account")
	query.Set("action", action)
	query.Set("address", address)
	query.Set("page", strconv.Itoa(page))
	query.Set("offset", strconv.Itoa(offset))
	query.Set("sort", "desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(apiURL, "?")+"?"+query.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("blockscout api error: HTTP %d", resp.StatusCode)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, false, fmt.Errorf("decode %s page %d: %w", action, page, err)
	}
	if decoded.Status != "1" {
		return nil, false, nil
	}
	var records []T
	if err := json.Unmarshal(decoded.Result, &records); err != nil {
		return nil, false, nil
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, true, nil
}
