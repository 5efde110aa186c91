package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"walletcsv/internal/domain"
	"walletcsv/internal/streaming"

	"github.com/segmentio/kafka-go"
)

type archiveKey struct {
	chainID string
	address string
}

// Batch accumulates transaction messages from the export topics and flushes
// them into the archive, committing offsets only after a successful write.
type Batch struct {
	txs       map[archiveKey][]domain.Transaction
	chains    map[archiveKey]domain.Chain
	order     []archiveKey
	runs      int
	messages  []kafka.Message
	minOffset map[int]int64
	maxOffset map[int]int64
}

func NewBatch() *Batch {
	return &Batch{
		txs:       make(map[archiveKey][]domain.Transaction),
		chains:    make(map[archiveKey]domain.Chain),
		minOffset: make(map[int]int64),
		maxOffset: make(map[int]int64),
	}
}

func (b *Batch) Add(msg streaming.Message, kafkaMsg kafka.Message) {
	switch msg.Type {
	case streaming.MessageTypeTransaction:
		key := archiveKey{chainID: msg.ChainID, address: msg.Address}
		if _, ok := b.txs[key]; !ok {
			b.order = append(b.order, key)
			b.chains[key] = domain.Chain{ID: msg.ChainID, Name: msg.ChainName}
		}
		b.txs[key] = append(b.txs[key], msg.Transaction())
	case streaming.MessageTypeExport:
		b.runs++
	}

	b.messages = append(b.messages, kafkaMsg)

	partition := kafkaMsg.Partition
	offset := kafkaMsg.Offset
	if lo, ok := b.minOffset[partition]; !ok || offset < lo {
		b.minOffset[partition] = offset
	}
	if hi, ok := b.maxOffset[partition]; !ok || offset > hi {
		b.maxOffset[partition] = offset
	}
}

func (b *Batch) Len() int {
	return len(b.messages)
}

type Committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (b *Batch) Flush(ctx context.Context, archive TransactionArchive, committer Committer) error {
	if b.Len() == 0 {
		return nil
	}

	start := time.Now()
	stored := 0
	for _, key := range b.order {
		txs := b.txs[key]
		if err := archive.StoreTransactions(ctx, b.chains[key], key.address, txs); err != nil {
			return fmt.Errorf("failed to archive %d transactions for chain %s: %w", len(txs), key.chainID, err)
		}
		stored += len(txs)
	}

	if err := committer.CommitMessages(ctx, b.messages...); err != nil {
		return fmt.Errorf("failed to commit kafka messages: %w", err)
	}

	slog.Info("flushed batch",
		"count", b.Len(),
		"txs", stored,
		"runs", b.runs,
		"partitions", len(b.minOffset),
		"duration", time.Since(start),
	)

	b.Reset()
	return nil
}

func (b *Batch) Reset() {
	clear(b.txs)
	clear(b.chains)
	b.order = b.order[:0]
	b.runs = 0
	b.messages = b.messages[:0]
	clear(b.minOffset)
	clear(b.maxOffset)
}
