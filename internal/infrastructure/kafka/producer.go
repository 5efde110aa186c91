package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletcsv/internal/domain"
	"walletcsv/internal/infrastructure/telemetry"
	"walletcsv/internal/ledger"
	"walletcsv/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTopicPrefix = "walletcsv-exports"

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer MessageWriter
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           500 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, cfg.TopicPrefix), nil
}

func NewProducerWithWriter(writer MessageWriter, topicPrefix string) *Producer {
	if strings.TrimSpace(topicPrefix) == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &Producer{writer: writer, prefix: topicPrefix}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishExport writes one transaction message per canonical transaction and
// a closing export message, all keyed by wallet address so that they land on
// the same partition in order.
func (p *Producer) PublishExport(ctx context.Context, run domain.ExportRun, txs []domain.Transaction) error {
	tracer := otel.Tracer("walletcsv/kafka")
	traceID, traceIDHex, ok := telemetry.NewTraceID()
	if !ok {
		traceIDHex = ""
	}
	traceCtx := ctx
	if ok {
		if spanCtx, ok := telemetry.NewSpanContext(traceID); ok {
			traceCtx = trace.ContextWithSpanContext(ctx, spanCtx)
		}
	}
	traceCtx, span := tracer.Start(traceCtx, "export.publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("chain.id", run.ChainID),
		attribute.String("address", run.Address),
		attribute.String("run.id", run.ID),
		attribute.Int("transactions", len(txs)),
	)

	headers := make([]kafka.Header, 0, 2)
	telemetry.InjectKafkaHeaders(traceCtx, &headers)
	topic := p.topicForChain(run.ChainID)
	key := []byte(run.Address)

	messages := make([]kafka.Message, 0, len(txs)+1)
	for _, tx := range txs {
		msg := streaming.TransactionMessage(run, tx, ledger.Classify(tx))
		msg.TraceID = traceIDHex
		payload, err := streaming.Encode(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		messages = append(messages, kafka.Message{Topic: topic, Key: key, Value: payload, Headers: headers})
	}

	summary := streaming.ExportMessage(run)
	summary.TraceID = traceIDHex
	payload, err := streaming.Encode(summary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	messages = append(messages, kafka.Message{Topic: topic, Key: key, Value: payload, Headers: headers})

	if err := p.writer.WriteMessages(traceCtx, messages...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish export %s: %w", run.ID, err)
	}
	return nil
}

// TopicForChain returns the topic export events of chainID are written to.
func TopicForChain(prefix, chainID string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s-%s", prefix, chainID)
}

func (p *Producer) topicForChain(chainID string) string {
	return TopicForChain(p.prefix, chainID)
}
