package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/assistant"
	"walletcsv/internal/config"
	"walletcsv/internal/domain"
	"walletcsv/internal/infrastructure/blockscout"
	"walletcsv/internal/infrastructure/chainscout"
	"walletcsv/internal/infrastructure/feedcache"
	"walletcsv/internal/infrastructure/kafka"
	"walletcsv/internal/infrastructure/llm"
	"walletcsv/internal/infrastructure/logging"
	"walletcsv/internal/infrastructure/mysql"
	"walletcsv/internal/infrastructure/sqlite"
	"walletcsv/internal/infrastructure/telemetry"
	"walletcsv/internal/interfaces/httpapi"
)

type appOptions struct {
	service string
	// console keeps log lines on stdout even without --verbose.
	console       bool
	skipMalformed bool
	noArchive     bool
}

// app holds the collaborators every subcommand is built from.
type app struct {
	cfg      config.Config
	chains   *chainscout.Directory
	explorer *blockscout.Client
	store    *sqlite.Store
	archive  *mysql.Archive
	metrics  *httpapi.Metrics
	exporter *application.Exporter
	scanner  *application.Scanner

	closers         []func() error
	shutdownTracing telemetry.ShutdownFunc
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	a := &app{cfg: cfg, shutdownTracing: func(context.Context) error { return nil }}

	logWriter, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Quiet:      !opts.console && !verbose,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
	} else if logWriter != nil {
		a.closers = append(a.closers, logWriter.Close)
	}

	shutdown, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName:    "walletcsv-" + opts.service,
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
	})
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	}
	a.shutdownTracing = shutdown

	a.chains = chainscout.NewDirectory(chainscout.Config{
		URL: cfg.ChainDirectoryURL,
		TTL: cfg.ChainCacheTTL,
	})
	a.explorer = blockscout.NewClient(blockscout.Config{
		PageSize:     cfg.ExplorerPageSize,
		RateInterval: cfg.ExplorerRateInterval,
	})

	var source application.FeedSource = a.explorer
	if cfg.RedisAddr != "" {
		cached, err := feedcache.NewCachedSource(a.explorer, feedcache.CacheConfig{
			Addr: cfg.RedisAddr,
			TTL:  cfg.FeedCacheTTL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("feed cache: %w", err)
		}
		a.closers = append(a.closers, cached.Close)
		source = cached
	}

	store, err := sqlite.NewStore(cfg.SettingsDBPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("settings db: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	a.metrics = httpapi.NewMetrics()
	sinks := application.ExportSinks{Runs: store, Observer: a.metrics}

	if cfg.ArchiveDBDSN != "" && !opts.noArchive {
		archive, err := mysql.NewArchive(cfg.ArchiveDBDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("archive db: %w", err)
		}
		a.archive = archive
		a.closers = append(a.closers, archive.Close)
		sinks.Archive = archive
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		a.closers = append(a.closers, producer.Close)
		sinks.Publisher = producer
	}

	exporterCfg := application.ExporterConfig{}
	if opts.skipMalformed {
		exporterCfg.Malformed = application.SkipMalformed
	}
	if a.exporter, err = application.NewExporter(source, sinks, exporterCfg); err != nil {
		a.Close()
		return nil, err
	}
	if a.scanner, err = application.NewScanner(a.explorer, application.ScanConfig{
		BatchSize: cfg.ScanBatchSize,
		Delay:     cfg.ScanDelay,
	}); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases everything in reverse order of acquisition and flushes
// pending spans.
func (a *app) Close() {
	for _, closeFn := range slices.Backward(a.closers) {
		if err := closeFn(); err != nil {
			slog.Warn("close error", "err", err)
		}
	}
	a.closers = nil

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		slog.Warn("tracing shutdown error", "err", err)
	}
}

func (a *app) findChain(ctx context.Context, name string) (domain.Chain, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Chain{}, errors.New("a chain name is required")
	}
	return a.chains.Find(ctx, name)
}

// setting reads a persisted setting, logging rather than failing on errors.
func (a *app) setting(ctx context.Context, key string) string {
	value, ok, err := a.store.Setting(ctx, key)
	if err != nil {
		slog.Warn("read setting", "key", key, "err", err)
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

func (a *app) remember(ctx context.Context, address, chainName string) {
	if address != "" {
		if err := a.store.SetSetting(ctx, application.SettingLastAddress, address); err != nil {
			slog.Warn("save setting", "key", application.SettingLastAddress, "err", err)
		}
	}
	if chainName != "" {
		if err := a.store.SetSetting(ctx, application.SettingLastChain, chainName); err != nil {
			slog.Warn("save setting", "key", application.SettingLastChain, "err", err)
		}
	}
}

// llmConfig prefers the environment and falls back to the stored settings.
func (a *app) llmConfig(ctx context.Context) llm.Config {
	cfg := llm.Config{
		Provider: a.cfg.LLMProvider,
		Model:    a.cfg.LLMModel,
		APIKey:   a.cfg.LLMAPIKey,
	}
	if cfg.Provider == "" {
		cfg.Provider = a.setting(ctx, application.SettingLLMProvider)
		if cfg.Model == "" {
			cfg.Model = a.setting(ctx, application.SettingLLMModel)
		}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = a.setting(ctx, application.SettingLLMAPIKey)
	}
	switch strings.ToLower(cfg.Provider) {
	case llm.ProviderOpenAI:
		cfg.BaseURL = a.cfg.OpenAIBaseURL
	case llm.ProviderAnthropic:
		cfg.BaseURL = a.cfg.AnthropicBaseURL
	}
	return cfg
}

// newAgent returns nil without error when no LLM provider is configured.
func (a *app) newAgent(ctx context.Context, confirmer assistant.Confirmer) (*assistant.Agent, error) {
	llmCfg := a.llmConfig(ctx)
	if llmCfg.Provider == "" {
		return nil, nil
	}
	provider, err := llm.New(llmCfg)
	if err != nil {
		return nil, err
	}
	executor, err := assistant.NewExecutor(assistant.ExecutorConfig{
		Chains:    a.chains,
		Exporter:  a.exporter,
		Scanner:   a.scanner,
		Sink:      assistant.DirSink{Dir: a.cfg.ExportDir},
		Confirmer: confirmer,
	})
	if err != nil {
		return nil, err
	}
	return assistant.NewAgent(provider, executor, assistant.AgentConfig{})
}
