package application

import (
	"context"
	"errors"
	"testing"

	"walletcsv/internal/domain"
	"walletcsv/internal/streaming"

	"github.com/segmentio/kafka-go"
)

type mockArchive struct {
	stored map[string][]domain.Transaction
	err    error
}

func (m *mockArchive) StoreTransactions(ctx context.Context, chain domain.Chain, address string, txs []domain.Transaction) error {
	if m.err != nil {
		return m.err
	}
	if m.stored == nil {
		m.stored = make(map[string][]domain.Transaction)
	}
	m.stored[chain.ID+"/"+address] = append(m.stored[chain.ID+"/"+address], txs...)
	return nil
}

type mockCommitter struct {
	committed []kafka.Message
}

func (m *mockCommitter) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.committed = append(m.committed, msgs...)
	return nil
}

func TestBatch_AddAndFlush(t *testing.T) {
	batch := NewBatch()
	archive := &mockArchive{}
	committer := &mockCommitter{}
	ctx := context.Background()

	run := domain.ExportRun{ID: "r1", ChainID: "1", ChainName: "Ethereum", Address: "0xabc"}
	batch.Add(streaming.TransactionMessage(run, domain.Transaction{Hash: "0x1"}, domain.TagTransfer), kafka.Message{Offset: 1})
	batch.Add(streaming.TransactionMessage(run, domain.Transaction{Hash: "0x2"}, domain.TagTrade), kafka.Message{Offset: 2})
	batch.Add(streaming.ExportMessage(run), kafka.Message{Offset: 3})

	if batch.Len() != 3 {
		t.Errorf("expected batch len 3, got %d", batch.Len())
	}

	if err := batch.Flush(ctx, archive, committer); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if got := archive.stored["1/0xabc"]; len(got) != 2 || got[0].Hash != "0x1" {
		t.Errorf("unexpected archived transactions: %+v", got)
	}
	if len(committer.committed) != 3 {
		t.Errorf("expected 3 committed messages, got %d", len(committer.committed))
	}
	if batch.Len() != 0 {
		t.Errorf("expected batch len 0 after reset, got %d", batch.Len())
	}
}

func TestBatch_FlushErrorKeepsMessages(t *testing.T) {
	batch := NewBatch()
	committer := &mockCommitter{}
	run := domain.ExportRun{ID: "r1", ChainID: "1", Address: "0xabc"}
	batch.Add(streaming.TransactionMessage(run, domain.Transaction{Hash: "0x1"}, domain.TagTransfer), kafka.Message{Offset: 7})

	err := batch.Flush(context.Background(), &mockArchive{err: errors.New("db down")}, committer)
	if err == nil {
		t.Fatal("expected flush error")
	}
	if len(committer.committed) != 0 || batch.Len() != 1 {
		t.Fatalf("offsets must not be committed on failure: committed=%d len=%d", len(committer.committed), batch.Len())
	}
}
