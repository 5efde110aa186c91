package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"walletcsv/internal/domain"
	"walletcsv/internal/interfaces/httpapi"
	"walletcsv/internal/streaming"

	kafkago "github.com/segmentio/kafka-go"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafkago.Message
	committed []kafkago.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeArchive struct {
	mu     sync.Mutex
	failed bool
	stored []domain.Transaction
}

func (a *fakeArchive) StoreTransactions(_ context.Context, _ domain.Chain, _ string, txs []domain.Transaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.failed {
		a.failed = true
		return errors.New("connection reset")
	}
	a.stored = append(a.stored, txs...)
	return nil
}

func (a *fakeArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.stored)
}

func encodeMessage(t *testing.T, msg streaming.Message, offset int64) kafkago.Message {
	t.Helper()
	payload, err := streaming.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return kafkago.Message{Topic: "walletcsv-exports-1", Offset: offset, Value: payload, Time: time.Now()}
}

func TestArchiveConsumer_RetriesFailedFlush(t *testing.T) {
	run := domain.ExportRun{ID: "r1", ChainID: "1", ChainName: "Ethereum", Address: "0xabc", Transactions: 2}
	reader := &fakeReader{pending: []kafkago.Message{
		encodeMessage(t, streaming.TransactionMessage(run, domain.Transaction{Hash: "0x1"}, domain.TagTransfer), 1),
		{Topic: "walletcsv-exports-1", Offset: 2, Value: []byte("not json")},
		encodeMessage(t, streaming.TransactionMessage(run, domain.Transaction{Hash: "0x2"}, domain.TagTrade), 3),
		encodeMessage(t, streaming.ExportMessage(run), 4),
	}}
	archive := &fakeArchive{}
	metrics := httpapi.NewMetrics()
	consumer := archiveConsumer{archive: archive, metrics: metrics, batchSize: 100, flushInterval: 20 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.consume(ctx, reader, "1")
	}()

	deadline := time.After(2 * time.Second)
	for archive.count() < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("archive never received the batch, stored %d", archive.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	// One decode-error commit plus the three batched messages.
	if got := reader.commits(); got != 4 {
		t.Fatalf("expected 4 commits, got %d", got)
	}
	snap := metrics.Snapshot()
	if snap.KafkaDecodeErrs != 1 || snap.KafkaApplyErrs != 1 {
		t.Fatalf("unexpected error counters: %+v", snap)
	}
	if snap.ArchivedTotal != 2 {
		t.Fatalf("expected 2 archived transactions, got %d", snap.ArchivedTotal)
	}
}
