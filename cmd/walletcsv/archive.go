package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/infrastructure/kafka"
	"walletcsv/internal/infrastructure/telemetry"
	"walletcsv/internal/interfaces/httpapi"
	"walletcsv/internal/streaming"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var archiveFlags struct {
	chainIDs      []string
	chains        []string
	batchSize     int
	flushInterval time.Duration
	serveHTTP     bool
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Consume export events from Kafka into the MySQL archive",
	Long: `Read the per-chain export topics and upsert every transaction into the
archive database. Offsets are committed only after the batch is stored, so a
restart replays at most one batch, which the archive absorbs idempotently.

Requires KAFKA_BROKERS and ARCHIVE_DB_DSN.`,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().StringSliceVar(&archiveFlags.chainIDs, "chain-id", nil, "chain ids whose topics are consumed")
	archiveCmd.Flags().StringSliceVar(&archiveFlags.chains, "chain", nil, "chain names whose topics are consumed")
	archiveCmd.Flags().IntVar(&archiveFlags.batchSize, "batch-size", 500, "messages per archive write")
	archiveCmd.Flags().DurationVar(&archiveFlags.flushInterval, "flush-interval", 500*time.Millisecond, "flush a partial batch after this much idle time")
	archiveCmd.Flags().BoolVar(&archiveFlags.serveHTTP, "http", false, "also serve the HTTP API on HTTP_ADDR")
}

func runArchive(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, appOptions{service: "archive", console: true})
	if err != nil {
		return err
	}
	defer a.Close()
	if a.archive == nil {
		return errors.New("ARCHIVE_DB_DSN is required for archiving")
	}

	chainIDs := append([]string(nil), archiveFlags.chainIDs...)
	for _, name := range archiveFlags.chains {
		chain, err := a.findChain(ctx, name)
		if err != nil {
			return err
		}
		chainIDs = append(chainIDs, chain.ID)
	}

	readers, err := kafka.NewReaders(kafka.ReaderConfig{
		Brokers:     a.cfg.KafkaBrokers,
		GroupID:     a.cfg.KafkaGroupID,
		TopicPrefix: a.cfg.KafkaTopicPrefix,
	}, chainIDs)
	if err != nil {
		return err
	}

	if archiveFlags.serveHTTP {
		server, err := a.newHTTPServer(ctx)
		if err != nil {
			return err
		}
		go func() {
			if err := server.ListenAndServe(ctx, a.cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("http server error", "err", err)
				cancel()
			}
		}()
	}

	consumer := archiveConsumer{
		archive:       a.archive,
		metrics:       a.metrics,
		batchSize:     max(archiveFlags.batchSize, 1),
		flushInterval: archiveFlags.flushInterval,
	}
	if consumer.flushInterval <= 0 {
		consumer.flushInterval = 500 * time.Millisecond
	}

	var wg sync.WaitGroup
	for i, reader := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.consume(ctx, reader, chainIDs[i])
		}()
	}

	slog.Info("archive streaming started", "topics", len(readers), "group", readers[0].Config().GroupID)
	<-ctx.Done()
	wg.Wait()
	for _, reader := range readers {
		_ = reader.Close()
	}
	slog.Info("archive streaming stopped")
	return nil
}

// fetchCommitter is the part of *kafkago.Reader a consumer loop needs.
type fetchCommitter interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	application.Committer
}

type archiveConsumer struct {
	archive       application.TransactionArchive
	metrics       *httpapi.Metrics
	batchSize     int
	flushInterval time.Duration
}

func (c archiveConsumer) consume(ctx context.Context, reader fetchCommitter, chainID string) {
	tracer := otel.Tracer("walletcsv/archive")
	batch := application.NewBatch()

	pendingTxs := 0

	flush := func(reason string) {
		if batch.Len() == 0 {
			return
		}
		// A failed batch is kept and retried on the next flush.
		if err := batch.Flush(context.WithoutCancel(ctx), c.archive, reader); err != nil {
			c.metrics.IncKafkaApplyErr()
			slog.Error("batch flush error", "reason", reason, "chain_id", chainID, "err", err)
			return
		}
		c.metrics.OnBatchArchived(pendingTxs)
		pendingTxs = 0
	}

	for {
		fetchCtx, cancelFetch := context.WithTimeout(ctx, c.flushInterval)
		message, err := reader.FetchMessage(fetchCtx)
		cancelFetch()

		if err != nil {
			if ctx.Err() != nil {
				flush("shutdown")
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				flush("idle")
				continue
			}
			c.metrics.IncKafkaFetchErr()
			slog.Error("kafka fetch error", "chain_id", chainID, "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		c.metrics.ObserveKafkaMessage(message.Topic, message.Time)

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("message decode error", "topic", message.Topic, "offset", message.Offset, "err", err)
			c.metrics.IncKafkaDecodeErr()
			if err := reader.CommitMessages(ctx, message); err != nil {
				c.metrics.IncKafkaCommitErr()
			}
			continue
		}
		if decoded.ChainID != chainID {
			slog.Warn("unexpected chain id on topic", "topic", message.Topic, "chain_id", decoded.ChainID)
		}

		messageCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		if !trace.SpanContextFromContext(messageCtx).IsValid() && decoded.TraceID != "" {
			if withTrace, ok := telemetry.ContextWithTraceID(messageCtx, decoded.TraceID); ok {
				messageCtx = withTrace
			}
		}
		_, span := tracer.Start(messageCtx, "archive.process_message", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("message.type", string(decoded.Type)),
			attribute.String("chain.id", decoded.ChainID),
			attribute.String("wallet.address", decoded.Address),
		)
		if decoded.TxHash != "" {
			span.SetAttributes(attribute.String("tx.hash", decoded.TxHash))
		}
		batch.Add(decoded, message)
		span.End()

		switch decoded.Type {
		case streaming.MessageTypeTransaction:
			pendingTxs++
		case streaming.MessageTypeExport:
			slog.Info("export event",
				"run_id", decoded.RunID,
				"chain_id", decoded.ChainID,
				"address", decoded.Address,
				"transactions", decoded.Transactions,
				"partial", decoded.Partial,
			)
		}

		if batch.Len() >= c.batchSize {
			flush("size")
		}
	}
}
