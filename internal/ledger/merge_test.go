package ledger

import (
	"errors"
	"reflect"
	"testing"

	"walletcsv/internal/domain"
)

func scenarioBFeeds() domain.Feeds {
	return domain.Feeds{
		Plain: []domain.PlainTransfer{{
			Hash: "0xB", TimeStamp: "1700000000", From: wallet, To: other,
			Value: "1000000000000000000", GasPrice: "10", GasUsed: "100",
			IsError: "0", FunctionName: "swapExactETHForTokens(uint256,address[],address,uint256)", Input: "0x7ff36ab5",
		}},
		Tokens: []domain.TokenTransfer{{
			Hash: "0xb", TimeStamp: "1700000000", From: other, To: wallet,
			Value: "500000000", TokenName: "USD Coin", TokenSymbol: "USDC", TokenDecimal: "6",
		}},
	}
}

func TestMergeJoinsFeedsByHash(t *testing.T) {
	txs, err := Merge(scenarioBFeeds(), newTestNormalizer(t))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]
	if tx.Hash != "0xb" {
		t.Fatalf("expected lowercase hash, got %q", tx.Hash)
	}
	if len(tx.Movements) != 2 {
		t.Fatalf("expected 2 movements, got %+v", tx.Movements)
	}
	if tx.Movements[0].Direction != domain.DirectionOut || tx.Movements[0].Currency != "ETH" {
		t.Fatalf("plain movement should come first, got %+v", tx.Movements[0])
	}
	if tx.Movements[1].Direction != domain.DirectionIn || tx.Movements[1].Currency != "USDC" {
		t.Fatalf("token movement should come second, got %+v", tx.Movements[1])
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	n := newTestNormalizer(t)
	feeds := scenarioBFeeds()
	feeds.Internal = []domain.InternalTransfer{{Hash: "0xc", TimeStamp: "1600000000", From: other, To: wallet, Value: "7"}}

	first, err := Merge(feeds, n)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Merge(feeds, n)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("merge not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestMergeDuplicatePlainRecordDoesNotDuplicateMovement(t *testing.T) {
	feeds := scenarioBFeeds()
	feeds.Plain = append(feeds.Plain, feeds.Plain[0])
	txs, err := Merge(feeds, newTestNormalizer(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 || len(txs[0].Movements) != 2 {
		t.Fatalf("expected one transaction with two movements, got %+v", txs)
	}
}

func TestMergeSynthesizesDefaults(t *testing.T) {
	feeds := domain.Feeds{
		Internal: []domain.InternalTransfer{{Hash: "0xD", TimeStamp: "1650000000", From: other, To: wallet, Value: "3"}},
	}
	txs, err := Merge(feeds, newTestNormalizer(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	tx := txs[0]
	if tx.IsError || tx.GasPrice != "0" || tx.GasUsed != "0" || tx.FunctionName != "" || tx.Input != domain.PlainInput {
		t.Fatalf("unexpected defaults: %+v", tx)
	}
}

func TestMergeToleratesPartialFeeds(t *testing.T) {
	n := newTestNormalizer(t)

	txs, err := Merge(domain.Feeds{}, n)
	if err != nil || len(txs) != 0 {
		t.Fatalf("empty feeds: got %v, %v", txs, err)
	}

	feeds := domain.Feeds{
		Tokens: []domain.TokenTransfer{
			{Hash: "0x1", TimeStamp: "100", From: other, Value: "1", TokenSymbol: "DAI", TokenDecimal: "18"},
			{Hash: "0x2", TimeStamp: "200", From: wallet, Value: "1", TokenSymbol: "DAI", TokenDecimal: "18"},
		},
		Partial: true,
	}
	txs, err = Merge(feeds, n)
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
}

func TestMergeSortsNewestFirst(t *testing.T) {
	feeds := domain.Feeds{
		Plain: []domain.PlainTransfer{
			{Hash: "0xold", TimeStamp: "100", From: wallet, Value: "1"},
			{Hash: "0xnew", TimeStamp: "300", From: wallet, Value: "1"},
		},
		Internal: []domain.InternalTransfer{
			{Hash: "0xmid", TimeStamp: "2024-01-01T00:00:00Z", From: other, Value: "1"},
		},
	}
	// 2024-01-01 is far newer than the epoch values above.
	txs, err := Merge(feeds, newTestNormalizer(t))
	if err != nil {
		t.Fatal(err)
	}
	var hashes []string
	for _, tx := range txs {
		hashes = append(hashes, tx.Hash)
	}
	want := []string{"0xmid", "0xnew", "0xold"}
	if !reflect.DeepEqual(hashes, want) {
		t.Fatalf("order = %v, want %v", hashes, want)
	}
}

func TestMergeSkipsRecordsWithoutMovement(t *testing.T) {
	feeds := domain.Feeds{
		Internal: []domain.InternalTransfer{{Hash: "0xe", TimeStamp: "1", From: other, Value: "5", IsError: "1"}},
		Tokens:   []domain.TokenTransfer{{Hash: "0xf", TimeStamp: "1", From: other, Value: "5", TokenSymbol: "$CLAIM"}},
	}
	txs, err := Merge(feeds, newTestNormalizer(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %+v", txs)
	}
}

func TestMergeRejectsMalformedTimestamp(t *testing.T) {
	feeds := domain.Feeds{Plain: []domain.PlainTransfer{{Hash: "0x1", TimeStamp: "yesterday", From: wallet, Value: "1"}}}
	if _, err := Merge(feeds, newTestNormalizer(t)); !errors.Is(err, ErrMalformedTimestamp) {
		t.Fatalf("expected ErrMalformedTimestamp, got %v", err)
	}
}
