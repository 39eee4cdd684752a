// Package reconcile pairs destination-chain claims with source-chain transfers
// and classifies every claim as completed or suspicious and every unclaimed
// transfer as pending. The engine is pure: it performs no I/O, keeps no state
// between runs and never mutates its inputs, so separate bridge instances can
// be reconciled in parallel.
package reconcile

import (
	"context"
	"log/slog"
	"math/big"
	"sort"

	"bridgewatch/internal/domain"
)

// Options tune a reconciliation run.
type Options struct {
	// RequireNetworkMatch makes the parameter check use DiagnoseFlow instead of
	// the event/bridge pairing alone.
	RequireNetworkMatch bool
}

// Engine runs reconciliations. The zero value is not usable; use NewEngine.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine builds an engine. A nil logger falls back to slog.Default().
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, logger: logger}
}

// Reconcile runs the engine with default options.
func Reconcile(claims []domain.Claim, transfers []domain.Transfer) domain.AggregateResult {
	result, _ := NewEngine(Options{}, nil).Run(claims, transfers)
	return result
}

// Run reconciles one snapshot. Match precedence is first-in-input-order, so
// callers must supply claims and transfers in a stable order (chronological).
func (e *Engine) Run(claims []domain.Claim, transfers []domain.Transfer) (domain.AggregateResult, Assignment) {
	assignment := MatchClaims(claims, transfers)
	outcomes := make([]domain.MatchOutcome, len(claims))

	result := domain.AggregateResult{
		Completed:  []domain.CompletedEntry{},
		Suspicious: []domain.SuspiciousEntry{},
		Pending:    []domain.PendingEntry{},
	}

	for _, match := range assignment.Matches {
		claim := claims[match.ClaimIndex]
		if !match.Found() {
			outcomes[match.ClaimIndex] = domain.MatchOutcome{
				Kind:          domain.OutcomeSuspicious,
				TransferIndex: -1,
				Reason:        domain.ReasonNoMatchingTransfer,
			}
			result.Suspicious = append(result.Suspicious, domain.SuspiciousEntry{
				Claim:  claim,
				Reason: domain.ReasonNoMatchingTransfer,
			})
			e.logger.Warn("claim has no matching transfer",
				"claim_num", claim.ClaimNum,
				"actual_claim_num", claim.ActualClaimNum,
				"txid", claim.TxID,
				"has_txid", claim.HasTxID(),
				"conversion_errors", claim.ConversionErrors,
			)
			continue
		}

		transfer := transfers[match.TransferIndex]
		validation := ValidateParameters(claim, transfer, e.opts.RequireNetworkMatch)
		if validation.Passed() {
			outcomes[match.ClaimIndex] = domain.MatchOutcome{
				Kind:          domain.OutcomeCompleted,
				TransferIndex: match.TransferIndex,
				MatchReason:   match.Reason,
			}
			result.Completed = append(result.Completed, domain.CompletedEntry{
				Claim:       claim,
				Transfer:    transfer,
				MatchReason: match.Reason,
				Validation:  validation,
			})
			e.logDecision(slog.LevelDebug, "claim completed", claim, transfer, match, validation)
			continue
		}

		outcomes[match.ClaimIndex] = domain.MatchOutcome{
			Kind:          domain.OutcomeSuspicious,
			TransferIndex: match.TransferIndex,
			MatchReason:   match.Reason,
			Reason:        domain.ReasonParameterMismatch,
			Evidence:      validation.Evidence,
		}
		matched := transfer
		checked := validation
		result.Suspicious = append(result.Suspicious, domain.SuspiciousEntry{
			Claim:       claim,
			Reason:      domain.ReasonParameterMismatch,
			Transfer:    &matched,
			MatchReason: match.Reason,
			Validation:  &checked,
			Evidence:    validation.Evidence,
		})
		e.logDecision(slog.LevelWarn, "claim parameters do not match transfer", claim, transfer, match, validation)
	}

	for i, transfer := range transfers {
		if assignment.IsConsumed(i) {
			continue
		}
		result.Pending = append(result.Pending, domain.PendingEntry{
			Transfer:       transfer,
			SuggestedClaim: SuggestClaim(transfer),
		})
	}

	sortByBlockDesc(&result)
	result.Stats = domain.Stats{
		TotalClaims:    len(claims),
		TotalTransfers: len(transfers),
		Completed:      len(result.Completed),
		Suspicious:     len(result.Suspicious),
		Pending:        len(result.Pending),
	}
	result.FraudDetected = len(result.Suspicious) > 0

	e.logger.Info("reconciliation finished",
		"claims", result.Stats.TotalClaims,
		"transfers", result.Stats.TotalTransfers,
		"completed", result.Stats.Completed,
		"suspicious", result.Stats.Suspicious,
		"pending", result.Stats.Pending,
		"fraud_detected", result.FraudDetected,
	)

	assignment.Outcomes = outcomes
	return result, assignment
}

// SuggestClaim builds the claim template for a transfer nobody has claimed.
func SuggestClaim(transfer domain.Transfer) domain.SuggestedClaim {
	suggestion := domain.SuggestedClaim{
		RecipientAddress:    transfer.SenderAddress,
		SenderAddress:       transfer.SenderAddress,
		Amount:              copyInt(transfer.Amount),
		Reward:              copyInt(transfer.Reward),
		Data:                transfer.Data,
		TxID:                transfer.Reference(),
		TxTimestamp:         transfer.Timestamp,
		SourceBridgeAddress: transfer.BridgeAddress,
	}
	switch transfer.EventType {
	case domain.EventNewExpatriation:
		suggestion.BridgeType = domain.BridgeTypeImportWrapper
		suggestion.HomeNetwork = transfer.FromNetwork
		suggestion.ForeignNetwork = transfer.ToNetwork
	case domain.EventNewRepatriation:
		suggestion.BridgeType = domain.BridgeTypeExport
		suggestion.HomeNetwork = transfer.ToNetwork
		suggestion.ForeignNetwork = transfer.FromNetwork
	}
	return suggestion
}

func (e *Engine) logDecision(level slog.Level, msg string, claim domain.Claim, transfer domain.Transfer, match Match, validation domain.Validation) {
	e.logger.Log(context.Background(), level, msg,
		"claim_num", claim.ClaimNum,
		"actual_claim_num", claim.ActualClaimNum,
		"transfer_hash", transfer.Reference(),
		"match_reason", match.Reason,
		"amounts_match", validation.AmountsMatch,
		"recipients_match", validation.RecipientsMatch,
		"reward_valid", validation.RewardValid,
		"is_valid_flow", validation.IsValidFlow,
		"evidence", len(validation.Evidence),
	)
}

func sortByBlockDesc(result *domain.AggregateResult) {
	sort.SliceStable(result.Completed, func(a, b int) bool {
		return result.Completed[a].Transfer.BlockNumber > result.Completed[b].Transfer.BlockNumber
	})
	sort.SliceStable(result.Suspicious, func(a, b int) bool {
		return suspiciousBlock(result.Suspicious[a]) > suspiciousBlock(result.Suspicious[b])
	})
	sort.SliceStable(result.Pending, func(a, b int) bool {
		return result.Pending[a].Transfer.BlockNumber > result.Pending[b].Transfer.BlockNumber
	})
}

func suspiciousBlock(entry domain.SuspiciousEntry) uint64 {
	if entry.Transfer != nil {
		return entry.Transfer.BlockNumber
	}
	return entry.Claim.BlockNumber
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func formatInt(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
