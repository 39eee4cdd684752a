package httpapi

import (
	"sort"
	"sync"
	"time"

	"bridgewatch/internal/domain"
)

type bridgeStats struct {
	runs        uint64
	errors      uint64
	lastRun     time.Time
	lastElapsed time.Duration
	completed   int
	suspicious  int
	pending     int
	fraud       bool
}

// Metrics collects service counters and renders them in Prometheus text
// format. It satisfies application.WatcherObserver.
type Metrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	bridges         map[string]*bridgeStats
	kafkaMessages   uint64
	kafkaDecodeErrs uint64
	kafkaApplyErrs  uint64
	kafkaCommitErrs uint64
	kafkaFetchErrs  uint64
	kafkaLastLag    time.Duration
	kafkaMaxLag     time.Duration
	kafkaTopicCount map[string]uint64
	httpReconciles  uint64
	httpThrottled   uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime:       time.Now(),
		bridges:         make(map[string]*bridgeStats),
		kafkaTopicCount: make(map[string]uint64),
	}
}

func (m *Metrics) bridge(name string) *bridgeStats {
	stats, ok := m.bridges[name]
	if !ok {
		stats = &bridgeStats{}
		m.bridges[name] = stats
	}
	return stats
}

func (m *Metrics) OnReconcile(bridge string, result domain.AggregateResult, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.bridge(bridge)
	stats.runs++
	stats.lastRun = time.Now()
	stats.lastElapsed = elapsed
	stats.completed = result.Stats.Completed
	stats.suspicious = result.Stats.Suspicious
	stats.pending = result.Stats.Pending
	stats.fraud = result.FraudDetected
}

func (m *Metrics) OnReconcileError(bridge string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bridge(bridge).errors++
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
	if topic != "" {
		m.kafkaTopicCount[topic]++
	}
	if !ts.IsZero() {
		lag := time.Since(ts)
		m.kafkaLastLag = lag
		if lag > m.kafkaMaxLag {
			m.kafkaMaxLag = lag
		}
	}
}

func (m *Metrics) incHTTPReconcile(throttled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if throttled {
		m.httpThrottled++
		return
	}
	m.httpReconciles++
}

type BridgeSnapshot struct {
	Bridge      string
	Runs        uint64
	Errors      uint64
	LastRun     time.Time
	LastElapsed time.Duration
	Completed   int
	Suspicious  int
	Pending     int
	Fraud       bool
}

type Snapshot struct {
	StartTime       time.Time
	Bridges         []BridgeSnapshot
	KafkaMessages   uint64
	KafkaDecodeErrs uint64
	KafkaApplyErrs  uint64
	KafkaCommitErrs uint64
	KafkaFetchErrs  uint64
	KafkaLastLag    time.Duration
	KafkaMaxLag     time.Duration
	KafkaTopicCount map[string]uint64
	HTTPReconciles  uint64
	HTTPThrottled   uint64
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bridges := make([]BridgeSnapshot, 0, len(m.bridges))
	for name, stats := range m.bridges {
		bridges = append(bridges, BridgeSnapshot{
			Bridge:      name,
			Runs:        stats.runs,
			Errors:      stats.errors,
			LastRun:     stats.lastRun,
			LastElapsed: stats.lastElapsed,
			Completed:   stats.completed,
			Suspicious:  stats.suspicious,
			Pending:     stats.pending,
			Fraud:       stats.fraud,
		})
	}
	sort.Slice(bridges, func(a, b int) bool { return bridges[a].Bridge < bridges[b].Bridge })

	topics := make(map[string]uint64, len(m.kafkaTopicCount))
	for topic, count := range m.kafkaTopicCount {
		topics[topic] = count
	}

	return Snapshot{
		StartTime:       m.startTime,
		Bridges:         bridges,
		KafkaMessages:   m.kafkaMessages,
		KafkaDecodeErrs: m.kafkaDecodeErrs,
		KafkaApplyErrs:  m.kafkaApplyErrs,
		KafkaCommitErrs: m.kafkaCommitErrs,
		KafkaFetchErrs:  m.kafkaFetchErrs,
		KafkaLastLag:    m.kafkaLastLag,
		KafkaMaxLag:     m.kafkaMaxLag,
		KafkaTopicCount: topics,
		HTTPReconciles:  m.httpReconciles,
		HTTPThrottled:   m.httpThrottled,
	}
}
