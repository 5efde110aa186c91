package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	feedCacheVersionKey = "walletcsv:feeds:version"
	feedCacheKeyPrefix  = "walletcsv:feeds:v"
	defaultCacheTTL     = 10 * time.Minute
)

type CacheConfig struct {
	Addr string
	TTL  time.Duration
}

// CachedSource is a read-through cache in front of a feed source. Partial
// fetches are passed through but never stored.
type CachedSource struct {
	source application.FeedSource
	cache  *redis.Client
	ttl    time.Duration
}

func NewCachedSource(source application.FeedSource, cfg CacheConfig) (*CachedSource, error) {
	if source == nil {
		return nil, errors.New("feed source is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &CachedSource{source: source}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewCachedSourceWithClient(source, client, cfg.TTL), nil
}

func NewCachedSourceWithClient(source application.FeedSource, client *redis.Client, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{source: source, cache: client, ttl: ttl}
}

func (s *CachedSource) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

func (s *CachedSource) FetchFeeds(ctx context.Context, chain domain.Chain, address string) (domain.Feeds, error) {
	if s.cache == nil {
		return s.source.FetchFeeds(ctx, chain, address)
	}
	version, ok := s.cacheVersion(ctx)
	if !ok {
		return s.source.FetchFeeds(ctx, chain, address)
	}
	key := feedCacheKey(version, chain.ID, address)
	if cached, err := s.cache.Get(ctx, key).Result(); err == nil {
		var feeds domain.Feeds
		if err := json.Unmarshal([]byte(cached), &feeds); err == nil {
			slog.Debug("feed cache hit", "chain", chain.Name, "address", address)
			return feeds, nil
		}
	}

	feeds, err := s.source.FetchFeeds(ctx, chain, address)
	if err != nil || feeds.Partial {
		return feeds, err
	}
	payload, err := json.Marshal(feeds)
	if err != nil {
		return feeds, nil
	}
	_ = s.cache.Set(ctx, key, payload, s.ttl).Err()
	return feeds, nil
}

// Invalidate makes every cached feed stale.
func (s *CachedSource) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Incr(ctx, feedCacheVersionKey).Err()
}

func (s *CachedSource) cacheVersion(ctx context.Context) (string, bool) {
	version, err := s.cache.Get(ctx, feedCacheVersionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func feedCacheKey(version, chainID, address string) string {
	var b strings.Builder
	b.Grow(96)
	b.WriteString(feedCacheKeyPrefix)
	b.WriteString(version)
	b.WriteString(":chain=")
	b.WriteString(chainID)
	b.WriteString(":addr=")
	b.WriteString(strings.ToLower(address))
	return b.String()
}
