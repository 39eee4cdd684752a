package application

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"bridgewatch/internal/domain"

	"github.com/segmentio/kafka-go"
)

const (
	recipient = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	sender    = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

type mockRepo struct {
	mu        sync.Mutex
	claims    map[string][]domain.Claim
	transfers map[string][]domain.Transfer
	reports   []domain.Report
	loadErr   error
	saveErr   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		claims:    make(map[string][]domain.Claim),
		transfers: make(map[string][]domain.Transfer),
	}
}

func (m *mockRepo) UpsertClaims(ctx context.Context, bridge string, claims []domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[bridge] = append(m.claims[bridge], claims...)
	return nil
}

func (m *mockRepo) UpsertTransfers(ctx context.Context, bridge string, transfers []domain.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[bridge] = append(m.transfers[bridge], transfers...)
	return nil
}

func (m *mockRepo) LoadSnapshot(ctx context.Context, bridge string) ([]domain.Claim, []domain.Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, nil, m.loadErr
	}
	return m.claims[bridge], m.transfers[bridge], nil
}

func (m *mockRepo) SaveReport(ctx context.Context, report domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.reports = append(m.reports, report)
	return nil
}

func (m *mockRepo) LatestReport(ctx context.Context, bridge string) (domain.Report, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].Bridge == bridge {
			return m.reports[i], true, nil
		}
	}
	return domain.Report{}, false, nil
}

func (m *mockRepo) Ping(ctx context.Context) error { return nil }

func (m *mockRepo) Close() error { return nil }

type mockCache struct {
	mu      sync.Mutex
	reports map[string]domain.Report
	gets    int
}

func (c *mockCache) GetReport(ctx context.Context, bridge string) (domain.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	report, ok := c.reports[bridge]
	return report, ok
}

func (c *mockCache) SetReport(ctx context.Context, report domain.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reports == nil {
		c.reports = make(map[string]domain.Report)
	}
	c.reports[report.Bridge] = report
}

type mockAlerts struct {
	mu     sync.Mutex
	alerts []domain.Report
	err    error
}

func (a *mockAlerts) PublishAlert(ctx context.Context, report domain.Report) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.alerts = append(a.alerts, report)
	return nil
}

type mockObserver struct {
	mu     sync.Mutex
	runs   map[string]int
	errors map[string]int
}

func newMockObserver() *mockObserver {
	return &mockObserver{runs: make(map[string]int), errors: make(map[string]int)}
}

func (o *mockObserver) OnReconcile(bridge string, result domain.AggregateResult, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs[bridge]++
}

func (o *mockObserver) OnReconcileError(bridge string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors[bridge]++
}

type mockCommitter struct {
	committed []kafka.Message
	err       error
}

func (m *mockCommitter) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.committed = append(m.committed, msgs...)
	return nil
}

var errBoom = errors.New("boom")

func claimFor(txid string, amount int64) domain.Claim {
	return domain.Claim{
		ClaimNum:         txid,
		BridgeType:       domain.BridgeTypeExport,
		SenderAddress:    sender,
		RecipientAddress: recipient,
		Amount:           big.NewInt(amount),
		TxID:             txid,
		HomeNetwork:      "Ethereum",
		ForeignNetwork:   "Obyte",
	}
}

func transferFor(hash string, amount int64) domain.Transfer {
	return domain.Transfer{
		EventType:        domain.EventNewRepatriation,
		FromNetwork:      "Obyte",
		ToNetwork:        "Ethereum",
		SenderAddress:    sender,
		RecipientAddress: recipient,
		Amount:           big.NewInt(amount),
		Reward:           big.NewInt(0),
		TransactionHash:  hash,
	}
}
