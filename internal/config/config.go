package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultChainDirectoryURL = "https://raw.githubusercontent.com/blockscout/chainscout/main/data/chains.json"
	DefaultKafkaTopicPrefix  = "walletcsv-exports"
)

type Config struct {
	ExplorerPageSize     int
	ExplorerRateInterval time.Duration
	ChainDirectoryURL    string
	ChainCacheTTL        time.Duration
	HTTPAddr             string
	HTTPRateLimit        float64
	CORSOrigins          []string
	RedisAddr            string
	FeedCacheTTL         time.Duration
	SettingsDBPath       string
	ArchiveDBDSN         string
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	KafkaGroupID         string
	OtelEndpoint         string
	LLMProvider          string
	LLMModel             string
	LLMAPIKey            string
	OpenAIBaseURL        string
	AnthropicBaseURL     string
	ScanBatchSize        int
	ScanDelay            time.Duration
	ExportDir            string
	LogLevel             string
	LogFormat            string
	LogFile              string
	LogMaxSizeMB         int
	LogMaxBackups        int
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Load reads the walletcsv settings from source. Every key is optional; an
// empty REDIS_ADDR, ARCHIVE_DB_DSN or KAFKA_BROKERS disables that component.
func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	var errs []error
	intValue := func(key string, def int) int {
		value, err := parseIntEnv(source, key, def)
		errs = append(errs, err)
		return value
	}
	durationValue := func(key string, def time.Duration) time.Duration {
		value, err := parseDurationEnv(source, key, def)
		errs = append(errs, err)
		return value
	}

	cfg := Config{
		ExplorerPageSize:     intValue("EXPLORER_PAGE_SIZE", 10000),
		ExplorerRateInterval: durationValue("EXPLORER_RATE_INTERVAL", 200*time.Millisecond),
		ChainDirectoryURL:    stringEnv(source, "CHAIN_DIRECTORY_URL", DefaultChainDirectoryURL),
		ChainCacheTTL:        durationValue("CHAIN_CACHE_TTL", time.Hour),
		HTTPAddr:             stringEnv(source, "HTTP_ADDR", ":8080"),
		CORSOrigins:          parseList(source, "CORS_ORIGINS", "*"),
		RedisAddr:            stringEnv(source, "REDIS_ADDR", ""),
		FeedCacheTTL:         durationValue("FEED_CACHE_TTL", 10*time.Minute),
		SettingsDBPath:       stringEnv(source, "SETTINGS_DB_PATH", "walletcsv.db"),
		ArchiveDBDSN:         stringEnv(source, "ARCHIVE_DB_DSN", ""),
		KafkaBrokers:         parseList(source, "KAFKA_BROKERS", ""),
		KafkaTopicPrefix:     stringEnv(source, "KAFKA_TOPIC_PREFIX", DefaultKafkaTopicPrefix),
		KafkaGroupID:         stringEnv(source, "KAFKA_GROUP_ID", "walletcsv-archive"),
		OtelEndpoint:         stringEnv(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LLMProvider:          strings.ToLower(stringEnv(source, "LLM_PROVIDER", "")),
		LLMModel:             stringEnv(source, "LLM_MODEL", ""),
		LLMAPIKey:            stringEnv(source, "LLM_API_KEY", ""),
		OpenAIBaseURL:        stringEnv(source, "OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicBaseURL:     stringEnv(source, "ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		ScanBatchSize:        intValue("SCAN_BATCH_SIZE", 5),
		ScanDelay:            durationValue("SCAN_DELAY", 300*time.Millisecond),
		ExportDir:            stringEnv(source, "EXPORT_DIR", "."),
		LogLevel:             stringEnv(source, "LOG_LEVEL", "info"),
		LogFormat:            stringEnv(source, "LOG_FORMAT", "text"),
		LogFile:              stringEnv(source, "LOG_FILE", ""),
		LogMaxSizeMB:         intValue("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:        intValue("LOG_MAX_BACKUPS", 3),
	}

	rateLimit, err := parseFloatEnv(source, "HTTP_RATE_LIMIT", 20)
	errs = append(errs, err)
	cfg.HTTPRateLimit = rateLimit

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if cfg.ExplorerPageSize <= 0 {
		return Config{}, fmt.Errorf("invalid EXPLORER_PAGE_SIZE: must be positive")
	}
	if cfg.ScanBatchSize <= 0 {
		return Config{}, fmt.Errorf("invalid SCAN_BATCH_SIZE: must be positive")
	}
	switch cfg.LLMProvider {
	case "", "openai", "anthropic":
	default:
		return Config{}, fmt.Errorf("invalid LLM_PROVIDER %q: want openai or anthropic", cfg.LLMProvider)
	}
	return cfg, nil
}

func stringEnv(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func parseIntEnv(source EnvSource, key string, defaultValue int) (int, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseFloatEnv(source EnvSource, key string, defaultValue float64) (float64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseList(source EnvSource, key string, defaultValue string) []string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(item); value != "" {
			values = append(values, value)
		}
	}
	return values
}
