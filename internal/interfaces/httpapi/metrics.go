package httpapi

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	"walletcsv/internal/domain"
)

// Metrics counts exports served by this process and, when the archive
// consumer runs, the Kafka messages it applied. It implements
// application.ExportObserver.
type Metrics struct {
	mu                 sync.RWMutex
	startTime          time.Time
	exportsTotal       uint64
	exportsPartial     uint64
	exportErrors       uint64
	transactionsTotal  uint64
	rowsTotal          uint64
	lastExportDuration time.Duration
	lastExportTime     time.Time
	exportsByChain     map[string]uint64
	errorsByChain      map[string]uint64
	rateLimited        uint64
	archivedTotal      uint64
	kafkaMessages      uint64
	kafkaDecodeErrs    uint64
	kafkaApplyErrs     uint64
	kafkaCommitErrs    uint64
	kafkaFetchErrs     uint64
	kafkaLastLag       time.Duration
	kafkaMaxLag        time.Duration
	kafkaTopicCount    map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:       time.Now(),
		exportsByChain:  make(map[string]uint64),
		errorsByChain:   make(map[string]uint64),
		kafkaTopicCount: make(map[string]uint64),
	}
}

func (m *Metrics) OnExport(run domain.ExportRun, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportsTotal++
	if run.Partial {
		m.exportsPartial++
	}
	m.transactionsTotal += uint64(run.Transactions)
	m.rowsTotal += uint64(run.Rows)
	m.lastExportDuration = duration
	m.lastExportTime = run.CreatedAt
	m.exportsByChain[run.ChainName]++
}

func (m *Metrics) OnExportError(chainName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportErrors++
	m.errorsByChain[chainName]++
}

func (m *Metrics) IncRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited++
}

// OnBatchArchived records transactions written by the archive consumer.
func (m *Metrics) OnBatchArchived(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archivedTotal += uint64(count)
}

func (m *Metrics) IncKafkaDecodeErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaDecodeErrs++
}

func (m *Metrics) IncKafkaApplyErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaApplyErrs++
}

func (m *Metrics) IncKafkaCommitErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaCommitErrs++
}

func (m *Metrics) IncKafkaFetchErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaFetchErrs++
}

func (m *Metrics) ObserveKafkaMessage(topic string, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaMessages++
	if !ts.IsZero() {
		m.kafkaLastLag = time.Since(ts)
		m.kafkaMaxLag = max(m.kafkaMaxLag, m.kafkaLastLag)
	}
	if topic != "" {
		m.kafkaTopicCount[topic]++
	}
}

type Snapshot struct {
	StartTime          time.Time
	ExportsTotal       uint64
	ExportsPartial     uint64
	ExportErrors       uint64
	TransactionsTotal  uint64
	RowsTotal          uint64
	LastExportDuration time.Duration
	LastExportTime     time.Time
	ExportsByChain     map[string]uint64
	ErrorsByChain      map[string]uint64
	RateLimited        uint64
	ArchivedTotal      uint64
	KafkaMessages      uint64
	KafkaDecodeErrs    uint64
	KafkaApplyErrs     uint64
	KafkaCommitErrs    uint64
	KafkaFetchErrs     uint64
	KafkaLastLag       time.Duration
	KafkaMaxLag        time.Duration
	KafkaTopicCount    map[string]uint64
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:          m.startTime,
		ExportsTotal:       m.exportsTotal,
		ExportsPartial:     m.exportsPartial,
		ExportErrors:       m.exportErrors,
		TransactionsTotal:  m.transactionsTotal,
		RowsTotal:          m.rowsTotal,
		LastExportDuration: m.lastExportDuration,
		LastExportTime:     m.lastExportTime,
		ExportsByChain:     maps.Clone(m.exportsByChain),
		ErrorsByChain:      maps.Clone(m.errorsByChain),
		RateLimited:        m.rateLimited,
		ArchivedTotal:      m.archivedTotal,
		KafkaMessages:      m.kafkaMessages,
		KafkaDecodeErrs:    m.kafkaDecodeErrs,
		KafkaApplyErrs:     m.kafkaApplyErrs,
		KafkaCommitErrs:    m.kafkaCommitErrs,
		KafkaFetchErrs:     m.kafkaFetchErrs,
		KafkaLastLag:       m.kafkaLastLag,
		KafkaMaxLag:        m.kafkaMaxLag,
		KafkaTopicCount:    maps.Clone(m.kafkaTopicCount),
	}
}

// WriteText renders the snapshot in the Prometheus text format.
func (s Snapshot) WriteText(w io.Writer) {
	fmt.Fprintf(w, "walletcsv_uptime_seconds %.0f\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(w, "walletcsv_exports_total %d\n", s.ExportsTotal)
	fmt.Fprintf(w, "walletcsv_exports_partial_total %d\n", s.ExportsPartial)
	fmt.Fprintf(w, "walletcsv_export_errors_total %d\n", s.ExportErrors)
	fmt.Fprintf(w, "walletcsv_transactions_total %d\n", s.TransactionsTotal)
	fmt.Fprintf(w, "walletcsv_rows_total %d\n", s.RowsTotal)
	fmt.Fprintf(w, "walletcsv_last_export_seconds %.3f\n", s.LastExportDuration.Seconds())
	fmt.Fprintf(w, "walletcsv_rate_limited_total %d\n", s.RateLimited)
	fmt.Fprintf(w, "walletcsv_archived_transactions_total %d\n", s.ArchivedTotal)
	fmt.Fprintf(w, "walletcsv_kafka_messages_total %d\n", s.KafkaMessages)
	fmt.Fprintf(w, "walletcsv_kafka_decode_errors_total %d\n", s.KafkaDecodeErrs)
	fmt.Fprintf(w, "walletcsv_kafka_apply_errors_total %d\n", s.KafkaApplyErrs)
	fmt.Fprintf(w, "walletcsv_kafka_commit_errors_total %d\n", s.KafkaCommitErrs)
	fmt.Fprintf(w, "walletcsv_kafka_fetch_errors_total %d\n", s.KafkaFetchErrs)
	fmt.Fprintf(w, "walletcsv_kafka_max_lag_seconds %.3f\n", s.KafkaMaxLag.Seconds())
	for _, chain := range slices.Sorted(maps.Keys(s.ExportsByChain)) {
		fmt.Fprintf(w, "walletcsv_exports_by_chain{chain=%q} %d\n", chain, s.ExportsByChain[chain])
	}
	for _, chain := range slices.Sorted(maps.Keys(s.ErrorsByChain)) {
		fmt.Fprintf(w, "walletcsv_export_errors_by_chain{chain=%q} %d\n", chain, s.ErrorsByChain[chain])
	}
	for _, topic := range slices.Sorted(maps.Keys(s.KafkaTopicCount)) {
		fmt.Fprintf(w, "walletcsv_kafka_topic_messages{topic=%q} %d\n", topic, s.KafkaTopicCount[topic])
	}
}
