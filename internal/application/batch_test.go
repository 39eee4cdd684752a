package application

import (
	"context"
	"errors"
	"testing"

	"bridgewatch/internal/ingest"
	"bridgewatch/internal/streaming"

	"github.com/segmentio/kafka-go"
)

func TestBatch_AddAndFlush(t *testing.T) {
	batch := NewBatch()
	repo := newMockRepo()
	committer := &mockCommitter{}
	ctx := context.Background()

	batch.Add(streaming.Message{
		Type:   streaming.MessageTypeClaim,
		Bridge: "0xbridge",
		Claim:  &ingest.RawClaim{ClaimNum: "1", BridgeType: "export", Amount: "1000", TxID: "0xabc"},
	}, kafka.Message{Partition: 0, Offset: 1})

	batch.Add(streaming.Message{
		Type:     streaming.MessageTypeTransfer,
		Bridge:   "0xbridge",
		Transfer: &ingest.RawTransfer{EventType: "NewRepatriation", Amount: "1000", TransactionHash: "0xabc", BlockNumber: "7"},
	}, kafka.Message{Partition: 1, Offset: 2})

	if batch.Len() != 2 {
		t.Errorf("expected batch len 2, got %d", batch.Len())
	}

	if err := batch.Flush(ctx, repo, committer); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if len(repo.claims["0xbridge"]) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(repo.claims["0xbridge"]))
	}
	if got := repo.claims["0xbridge"][0].BridgeAddress; got != "0xbridge" {
		t.Errorf("expected bridge address filled from message, got %q", got)
	}
	if len(repo.transfers["0xbridge"]) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(repo.transfers["0xbridge"]))
	}
	if got := repo.transfers["0xbridge"][0].BlockNumber; got != 7 {
		t.Errorf("expected block 7, got %d", got)
	}

	if len(committer.committed) != 2 {
		t.Errorf("expected 2 committed messages, got %d", len(committer.committed))
	}

	if batch.Len() != 0 {
		t.Errorf("expected batch len 0 after reset, got %d", batch.Len())
	}
}

func TestBatch_MalformedRecordIsKept(t *testing.T) {
	batch := NewBatch()
	repo := newMockRepo()

	batch.Add(streaming.Message{
		Type:   streaming.MessageTypeClaim,
		Bridge: "b",
		Claim:  &ingest.RawClaim{ClaimNum: "9", BridgeType: "export", Amount: "not-a-number"},
	}, kafka.Message{Offset: 1})

	if err := batch.Flush(context.Background(), repo, &mockCommitter{}); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	claims := repo.claims["b"]
	if len(claims) != 1 {
		t.Fatalf("expected the malformed claim to be stored, got %d", len(claims))
	}
	if claims[0].Amount != nil || len(claims[0].ConversionErrors) != 1 {
		t.Errorf("expected a conversion error and no amount, got %v %v", claims[0].Amount, claims[0].ConversionErrors)
	}
}

func TestBatch_CommitFailureKeepsMessages(t *testing.T) {
	batch := NewBatch()
	batch.Add(streaming.Message{
		Type:   streaming.MessageTypeClaim,
		Bridge: "b",
		Claim:  &ingest.RawClaim{ClaimNum: "1", Amount: "1"},
	}, kafka.Message{Offset: 1})

	err := batch.Flush(context.Background(), newMockRepo(), &mockCommitter{err: errBoom})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if batch.Len() != 1 {
		t.Errorf("expected messages to stay buffered, got %d", batch.Len())
	}
}

func TestApplyMessage(t *testing.T) {
	repo := newMockRepo()
	ctx := context.Background()

	err := ApplyMessage(ctx, repo, streaming.Message{
		Type:     streaming.MessageTypeTransfer,
		Bridge:   "b",
		Transfer: &ingest.RawTransfer{EventType: "NewExpatriation", Amount: "5", TransactionHash: "0x1"},
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(repo.transfers["b"]) != 1 {
		t.Errorf("expected 1 transfer, got %d", len(repo.transfers["b"]))
	}

	if err := ApplyMessage(ctx, repo, streaming.Message{Type: streaming.MessageTypeAlert, Bridge: "b"}); err == nil {
		t.Error("expected an error for alert messages")
	}
	if err := ApplyMessage(ctx, nil, streaming.Message{}); err == nil {
		t.Error("expected an error without repository")
	}
}
