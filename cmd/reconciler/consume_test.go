package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/ingest"
	"bridgewatch/internal/interfaces/httpapi"
	"bridgewatch/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	messages chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-f.messages:
		return msg, nil
	}
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) commitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.committed)
}

type fakeSnapshots struct {
	mu        sync.Mutex
	claims    map[string][]domain.Claim
	transfers map[string][]domain.Transfer
	failures  int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{claims: map[string][]domain.Claim{}, transfers: map[string][]domain.Transfer{}}
}

func (f *fakeSnapshots) UpsertClaims(_ context.Context, bridge string, claims []domain.Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("store unavailable")
	}
	f.claims[bridge] = append(f.claims[bridge], claims...)
	return nil
}

func (f *fakeSnapshots) UpsertTransfers(_ context.Context, bridge string, transfers []domain.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers[bridge] = append(f.transfers[bridge], transfers...)
	return nil
}

func (f *fakeSnapshots) LoadSnapshot(_ context.Context, bridge string) ([]domain.Claim, []domain.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[bridge], f.transfers[bridge], nil
}

func (f *fakeSnapshots) counts(bridge string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.claims[bridge]), len(f.transfers[bridge])
}

func encoded(t *testing.T, msg streaming.Message, offset int64) kafka.Message {
	t.Helper()
	payload, err := streaming.Encode(msg)
	require.NoError(t, err)
	return kafka.Message{Topic: "bridgewatch-" + string(msg.Type) + "s", Offset: offset, Value: payload, Time: time.Now()}
}

func startConsumer(t *testing.T, reader *fakeReader, repo *fakeSnapshots, flushSize int) (*httpapi.Metrics, func()) {
	t.Helper()
	metrics := httpapi.NewMetrics()
	c := newConsumer(reader, repo, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.flushSize = flushSize
	c.flushInterval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.run(ctx) }()
	return metrics, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestConsumer_StoresAndCommits(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 8)}
	repo := newFakeSnapshots()
	bridge := "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb"

	reader.messages <- encoded(t, streaming.Message{
		Type:   streaming.MessageTypeClaim,
		Bridge: bridge,
		Claim:  &ingest.RawClaim{ClaimNum: "1", BridgeType: "export", Amount: "100", TxID: "0xabc"},
	}, 1)
	reader.messages <- kafka.Message{Topic: "bridgewatch-claims", Offset: 2, Value: []byte("{not json")}
	reader.messages <- encoded(t, streaming.Message{
		Type:     streaming.MessageTypeTransfer,
		Bridge:   bridge,
		Transfer: &ingest.RawTransfer{EventType: "NewRepatriation", Amount: "100", TransactionHash: "0xabc"},
	}, 3)

	metrics, stop := startConsumer(t, reader, repo, 2)

	require.Eventually(t, func() bool {
		claims, transfers := repo.counts(bridge)
		return claims == 1 && transfers == 1 && reader.commitCount() == 3
	}, 2*time.Second, 10*time.Millisecond)
	stop()

	claims, _, err := repo.LoadSnapshot(context.Background(), bridge)
	require.NoError(t, err)
	assert.Equal(t, bridge, claims[0].BridgeAddress)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.KafkaMessages)
	assert.Equal(t, uint64(1), snap.KafkaDecodeErrs)
}

func TestConsumer_RetriesFailedFlush(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 1)}
	repo := newFakeSnapshots()
	repo.failures = 1

	reader.messages <- encoded(t, streaming.Message{
		Type:   streaming.MessageTypeClaim,
		Bridge: "0xbridge",
		Claim:  &ingest.RawClaim{ClaimNum: "7", BridgeType: "import", Amount: "5"},
	}, 10)

	metrics, stop := startConsumer(t, reader, repo, 1)

	require.Eventually(t, func() bool {
		claims, _ := repo.counts("0xbridge")
		return claims == 1 && reader.commitCount() == 1
	}, 3*time.Second, 10*time.Millisecond)
	stop()

	assert.Equal(t, uint64(1), metrics.Snapshot().KafkaApplyErrs)
}
