package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"walletcsv/internal/domain"
)

// ErrMalformedTimestamp is returned when a feed record carries a timestamp
// that is neither epoch seconds nor RFC 3339.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// Merge folds the three feeds into one canonical transaction per hash, newest
// first. Plain transfers are folded first, then internal transfers, then token
// transfers, which fixes the movement order inside each transaction. Any
// subset of records, including none, is accepted.
func Merge(feeds domain.Feeds, normalizer *Normalizer) ([]domain.Transaction, error) {
	if normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	m := newMerger()

	for _, record := range feeds.Plain {
		timestamp, err := parseTimestamp(record.TimeStamp)
		if err != nil {
			return nil, fmt.Errorf("tx %s: %w", record.Hash, err)
		}
		input := strings.TrimSpace(record.Input)
		if input == "" {
			input = domain.PlainInput
		}
		tx := &domain.Transaction{
			Hash:         canonicalHash(record.Hash),
			Timestamp:    timestamp,
			From:         strings.ToLower(record.From),
			To:           strings.ToLower(record.To),
			IsError:      parseFlag(record.IsError),
			GasPrice:     strings.TrimSpace(record.GasPrice),
			GasUsed:      strings.TrimSpace(record.GasUsed),
			FunctionName: record.FunctionName,
			Input:        input,
		}
		if movement, ok := normalizer.Plain(record); ok {
			tx.Movements = append(tx.Movements, movement)
		}
		m.put(tx)
	}

	for _, record := range feeds.Internal {
		movement, ok := normalizer.Internal(record)
		if !ok {
			continue
		}
		tx, err := m.getOrSynthesize(record.Hash, record.TimeStamp, record.From, record.To)
		if err != nil {
			return nil, err
		}
		tx.Movements = append(tx.Movements, movement)
	}

	for _, record := range feeds.Tokens {
		movement, ok := normalizer.Token(record)
		if !ok {
			continue
		}
		tx, err := m.getOrSynthesize(record.Hash, record.TimeStamp, record.From, record.To)
		if err != nil {
			return nil, err
		}
		tx.Movements = append(tx.Movements, movement)
	}

	return m.sorted(), nil
}

type merger struct {
	byHash map[string]*domain.Transaction
	order  []string
}

func newMerger() *merger {
	return &merger{byHash: make(map[string]*domain.Transaction)}
}

// put stores tx, replacing any earlier plain record for the same hash so that
// overlapping pages do not duplicate movements.
func (m *merger) put(tx *domain.Transaction) {
	if _, ok := m.byHash[tx.Hash]; !ok {
		m.order = append(m.order, tx.Hash)
	}
	m.byHash[tx.Hash] = tx
}

// getOrSynthesize returns the transaction for hash, creating one with default
// metadata when only internal or token records mention it.
func (m *merger) getOrSynthesize(hash, rawTimestamp, from, to string) (*domain.Transaction, error) {
	key := canonicalHash(hash)
	if tx, ok := m.byHash[key]; ok {
		return tx, nil
	}
	timestamp, err := parseTimestamp(rawTimestamp)
	if err != nil {
		return nil, fmt.Errorf("tx %s: %w", hash, err)
	}
	tx := &domain.Transaction{
		Hash:      key,
		Timestamp: timestamp,
		From:      strings.ToLower(from),
		To:        strings.ToLower(to),
		GasPrice:  "0",
		GasUsed:   "0",
		Input:     domain.PlainInput,
	}
	m.put(tx)
	return tx, nil
}

func (m *merger) sorted() []domain.Transaction {
	out := make([]domain.Transaction, 0, len(m.order))
	for _, hash := range m.order {
		out = append(out, *m.byHash[hash])
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Timestamp > out[b].Timestamp
	})
	return out
}

func canonicalHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}

func parseTimestamp(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformedTimestamp)
	}
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return seconds, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
	}
	return parsed.Unix(), nil
}
