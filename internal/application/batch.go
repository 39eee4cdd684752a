package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/streaming"

	"github.com/segmentio/kafka-go"
)

// Batch buffers decoded claim and transfer messages per bridge until they are
// flushed to the snapshot store. Offsets are committed only after the store
// accepted every record in the batch.
type Batch struct {
	claims    map[string][]domain.Claim
	transfers map[string][]domain.Transfer
	messages  []kafka.Message
	minOffset map[int]int64
	maxOffset map[int]int64
}

func NewBatch() *Batch {
	return &Batch{
		claims:    make(map[string][]domain.Claim),
		transfers: make(map[string][]domain.Transfer),
		minOffset: make(map[int]int64),
		maxOffset: make(map[int]int64),
	}
}

func (b *Batch) Add(msg streaming.Message, kafkaMsg kafka.Message) {
	switch msg.Type {
	case streaming.MessageTypeClaim:
		b.claims[msg.Bridge] = append(b.claims[msg.Bridge], DecodeClaimMessage(msg))
	case streaming.MessageTypeTransfer:
		b.transfers[msg.Bridge] = append(b.transfers[msg.Bridge], DecodeTransferMessage(msg))
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

func (b *Batch) Flush(ctx context.Context, repo SnapshotRepository, committer Committer) error {
	if b.Len() == 0 {
		return nil
	}

	start := time.Now()
	claimCount, transferCount := 0, 0

	for _, bridge := range sortedKeys(b.claims) {
		claims := b.claims[bridge]
		if err := repo.UpsertClaims(ctx, bridge, claims); err != nil {
			return fmt.Errorf("failed to store claims for %s: %w", bridge, err)
		}
		claimCount += len(claims)
	}
	for _, bridge := range sortedKeys(b.transfers) {
		transfers := b.transfers[bridge]
		if err := repo.UpsertTransfers(ctx, bridge, transfers); err != nil {
			return fmt.Errorf("failed to store transfers for %s: %w", bridge, err)
		}
		transferCount += len(transfers)
	}

	if err := committer.CommitMessages(ctx, b.messages...); err != nil {
		return fmt.Errorf("failed to commit kafka messages: %w", err)
	}

	slog.Info("flushed batch",
		"count", b.Len(),
		"claims", claimCount,
		"transfers", transferCount,
		"partitions", len(b.minOffset),
		"duration", time.Since(start),
	)

	b.Reset()
	return nil
}

func (b *Batch) Reset() {
	clear(b.claims)
	clear(b.transfers)
	b.messages = b.messages[:0]
	clear(b.minOffset)
	clear(b.maxOffset)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
