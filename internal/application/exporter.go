package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"walletcsv/internal/domain"
	"walletcsv/internal/ledger"
	"walletcsv/internal/taxcsv"

	"github.com/google/uuid"
)

type FeedSource interface {
	FetchFeeds(ctx context.Context, chain domain.Chain, address string) (domain.Feeds, error)
}

type RunRecorder interface {
	RecordRun(ctx context.Context, run domain.ExportRun) error
}

type TransactionArchive interface {
	StoreTransactions(ctx context.Context, chain domain.Chain, address string, txs []domain.Transaction) error
}

type EventPublisher interface {
	PublishExport(ctx context.Context, run domain.ExportRun, txs []domain.Transaction) error
}

type ExportObserver interface {
	OnExport(run domain.ExportRun, duration time.Duration)
	OnExportError(chainName string)
}

// ProgressFunc receives human-readable progress lines during an export.
type ProgressFunc func(msg string)

// MalformedPolicy decides what happens to a transaction whose amounts cannot
// be decoded.
type MalformedPolicy int

const (
	// AbortMalformed fails the whole export.
	AbortMalformed MalformedPolicy = iota
	// SkipMalformed drops the transaction's rows and logs it.
	SkipMalformed
)

type ExporterConfig struct {
	Malformed  MalformedPolicy
	ScamFilter ledger.ScamFilter
	Now        func() time.Time
}

// ExportSinks are optional collaborators notified after an export. Their
// failures are logged and never fail the export.
type ExportSinks struct {
	Runs      RunRecorder
	Archive   TransactionArchive
	Publisher EventPublisher
	Observer  ExportObserver
}

type Exporter struct {
	source FeedSource
	sinks  ExportSinks
	cfg    ExporterConfig
}

type Result struct {
	Run          domain.ExportRun
	Transactions []domain.Transaction
	Rows         []domain.Row
	CSV          string
	Tags         TagBreakdown
	Skipped      []string
}

func NewExporter(source FeedSource, sinks ExportSinks, cfg ExporterConfig) (*Exporter, error) {
	if source == nil {
		return nil, errors.New("feed source is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Exporter{source: source, sinks: sinks, cfg: cfg}, nil
}

// Export fetches every feed for address on chain and turns it into CSV. If
// ctx is cancelled while fetching, whatever was fetched is still exported and
// Result.Run.Partial is set.
func (e *Exporter) Export(ctx context.Context, chain domain.Chain, address string, progress ProgressFunc) (Result, error) {
	start := time.Now()
	result, err := e.export(ctx, chain, address, progress)
	if err != nil {
		if e.sinks.Observer != nil {
			e.sinks.Observer.OnExportError(chain.Name)
		}
		return Result{}, err
	}
	if e.sinks.Observer != nil {
		e.sinks.Observer.OnExport(result.Run, time.Since(start))
	}
	return result, nil
}

func (e *Exporter) export(ctx context.Context, chain domain.Chain, address string, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}
	addr, err := NormalizeAddress(address)
	if err != nil {
		return Result{}, err
	}
	normalizer, err := ledger.NewNormalizer(chain, addr, e.cfg.ScamFilter)
	if err != nil {
		return Result{}, err
	}
	projector, err := ledger.NewProjector(chain, addr)
	if err != nil {
		return Result{}, err
	}

	progress("Fetching normal transactions...")
	feeds, err := e.source.FetchFeeds(ctx, chain, addr)
	if err != nil {
		if !feeds.Partial {
			return Result{}, fmt.Errorf("fetch %s: %w", chain.Name, err)
		}
		slog.Warn("export continues with partial feeds", "chain", chain.Name, "address", addr, "err", err)
	}
	progress(fmt.Sprintf("Fetched %d txs, %d token txs, %d internal txs. Merging...",
		len(feeds.Plain), len(feeds.Tokens), len(feeds.Internal)))

	txs, err := ledger.Merge(feeds, normalizer)
	if err != nil {
		return Result{}, fmt.Errorf("merge %s: %w", chain.Name, err)
	}

	var rows []domain.Row
	var skipped []string
	for _, tx := range txs {
		txRows, err := projector.Project(tx)
		if err != nil {
			if e.cfg.Malformed == SkipMalformed {
				slog.Warn("skip malformed transaction", "chain", chain.Name, "tx", tx.Hash, "err", err)
				skipped = append(skipped, tx.Hash)
				continue
			}
			return Result{}, err
		}
		rows = append(rows, txRows...)
	}

	now := e.cfg.Now()
	run := domain.ExportRun{
		ID:           uuid.NewString(),
		ChainID:      chain.ID,
		ChainName:    chain.Name,
		Address:      addr,
		Transactions: len(txs),
		Rows:         len(rows),
		Partial:      feeds.Partial,
		Filename:     taxcsv.Filename(chain.Name, addr, now),
		CreatedAt:    now.UTC(),
	}
	result := Result{
		Run:          run,
		Transactions: txs,
		Rows:         rows,
		CSV:          taxcsv.Encode(rows),
		Tags:         BreakdownTags(rows),
		Skipped:      skipped,
	}

	e.notify(context.WithoutCancel(ctx), chain, result)

	slog.Info("export finished",
		"chain", chain.Name,
		"address", addr,
		"transactions", run.Transactions,
		"rows", run.Rows,
		"partial", run.Partial,
		"skipped", len(skipped),
	)
	return result, nil
}

func (e *Exporter) notify(ctx context.Context, chain domain.Chain, result Result) {
	run := result.Run
	if e.sinks.Runs != nil {
		if err := e.sinks.Runs.RecordRun(ctx, run); err != nil {
			slog.Error("record export run", "chain", chain.Name, "err", err)
		}
	}
	if e.sinks.Archive != nil && len(result.Transactions) > 0 {
		if err := e.sinks.Archive.StoreTransactions(ctx, chain, run.Address, result.Transactions); err != nil {
			slog.Error("archive transactions", "chain", chain.Name, "err", err)
		}
	}
	if e.sinks.Publisher != nil {
		if err := e.sinks.Publisher.PublishExport(ctx, run, result.Transactions); err != nil {
			slog.Error("publish export event", "chain", chain.Name, "err", err)
		}
	}
}
