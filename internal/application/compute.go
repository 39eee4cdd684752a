package application

import (
	"context"
	"errors"
	"log/slog"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/ingest"
	"bridgewatch/internal/streaming"
)

// DecodeClaimMessage canonicalizes the claim carried by a stream message. The
// message bridge fills in a missing bridge address.
func DecodeClaimMessage(msg streaming.Message) domain.Claim {
	claim, errs := ingest.DecodeClaim(*msg.Claim)
	if claim.BridgeAddress == "" {
		claim.BridgeAddress = msg.Bridge
	}
	logConversion(msg, errs)
	return claim
}

// DecodeTransferMessage canonicalizes the transfer carried by a stream message.
func DecodeTransferMessage(msg streaming.Message) domain.Transfer {
	transfer, errs := ingest.DecodeTransfer(*msg.Transfer)
	if transfer.BridgeAddress == "" {
		transfer.BridgeAddress = msg.Bridge
	}
	logConversion(msg, errs)
	return transfer
}

// ApplyMessage stores a single claim or transfer message.
func ApplyMessage(ctx context.Context, repo SnapshotRepository, msg streaming.Message) error {
	slog.Debug("consume message", "type", msg.Type, "bridge", msg.Bridge)

	if repo == nil {
		return errors.New("snapshot repository is required")
	}

	switch msg.Type {
	case streaming.MessageTypeClaim:
		return repo.UpsertClaims(ctx, msg.Bridge, []domain.Claim{DecodeClaimMessage(msg)})
	case streaming.MessageTypeTransfer:
		return repo.UpsertTransfers(ctx, msg.Bridge, []domain.Transfer{DecodeTransferMessage(msg)})
	default:
		return errors.New("unexpected message type " + string(msg.Type))
	}
}

func logConversion(msg streaming.Message, errs []ingest.ConversionError) {
	for _, err := range errs {
		slog.Warn("record field not converted",
			"bridge", msg.Bridge,
			"record", err.Record,
			"field", err.Field,
			"value", err.Value,
			"err", err.Err,
		)
	}
}
