package domain

import "math/big"

// MatchReason records which matcher pass paired a claim with a transfer.
type MatchReason string

const (
	MatchReasonTxID     MatchReason = "txid_match"
	MatchReasonFallback MatchReason = "fallback_match"
)

// SuspicionReason explains why a claim was not accepted as completed.
type SuspicionReason string

const (
	ReasonNoMatchingTransfer SuspicionReason = "no_matching_transfer"
	ReasonParameterMismatch  SuspicionReason = "txid_match_but_parameter_mismatch"
)

// OutcomeKind is the per-claim classification.
type OutcomeKind string

const (
	OutcomeCompleted  OutcomeKind = "completed"
	OutcomeSuspicious OutcomeKind = "suspicious"
)

// Evidence keeps both sides of a failed check for operator review.
type Evidence struct {
	Check         string `json:"check"`
	Reason        string `json:"reason"`
	ClaimValue    string `json:"claim_value"`
	TransferValue string `json:"transfer_value"`
}

// Validation is the parameter re-check of a matched claim/transfer pair.
type Validation struct {
	AmountsMatch    bool       `json:"amounts_match"`
	RecipientsMatch bool       `json:"recipients_match"`
	RewardValid     bool       `json:"reward_valid"`
	IsValidFlow     bool       `json:"is_valid_flow"`
	Evidence        []Evidence `json:"evidence,omitempty"`
}

// Passed reports whether every check succeeded.
func (v Validation) Passed() bool {
	return v.AmountsMatch && v.RecipientsMatch && v.RewardValid && v.IsValidFlow
}

// MatchOutcome is the decision taken for one claim.
type MatchOutcome struct {
	Kind          OutcomeKind     `json:"kind"`
	TransferIndex int             `json:"transfer_index"`
	MatchReason   MatchReason     `json:"match_reason,omitempty"`
	Reason        SuspicionReason `json:"reason,omitempty"`
	Evidence      []Evidence      `json:"evidence,omitempty"`
}

// CompletedEntry is a claim backed by a genuine transfer.
type CompletedEntry struct {
	Claim       Claim       `json:"claim"`
	Transfer    Transfer    `json:"transfer"`
	MatchReason MatchReason `json:"match_reason"`
	Validation  Validation  `json:"validation"`
}

// SuspiciousEntry is a claim that must not be trusted.
type SuspiciousEntry struct {
	Claim       Claim           `json:"claim"`
	Reason      SuspicionReason `json:"reason"`
	Transfer    *Transfer       `json:"transfer,omitempty"`
	MatchReason MatchReason     `json:"match_reason,omitempty"`
	Validation  *Validation     `json:"validation,omitempty"`
	Evidence    []Evidence      `json:"evidence,omitempty"`
}

// SuggestedClaim is a template for filing the claim a pending transfer is missing.
type SuggestedClaim struct {
	RecipientAddress    string     `json:"recipient_address"`
	SenderAddress       string     `json:"sender_address"`
	Amount              *big.Int   `json:"amount"`
	Reward              *big.Int   `json:"reward,omitempty"`
	Data                string     `json:"data,omitempty"`
	TxID                string     `json:"txid"`
	TxTimestamp         int64      `json:"txts"`
	SourceBridgeAddress string     `json:"source_bridge_address"`
	BridgeType          BridgeType `json:"bridge_type"`
	HomeNetwork         string     `json:"home_network"`
	ForeignNetwork      string     `json:"foreign_network"`
}

// PendingEntry is a transfer no claim has consumed yet.
type PendingEntry struct {
	Transfer       Transfer       `json:"transfer"`
	SuggestedClaim SuggestedClaim `json:"suggested_claim"`
}

// Stats counts the output buckets of one reconciliation run.
type Stats struct {
	TotalClaims    int `json:"total_claims"`
	TotalTransfers int `json:"total_transfers"`
	Completed      int `json:"completed"`
	Suspicious     int `json:"suspicious"`
	Pending        int `json:"pending"`
}

// AggregateResult is the full output of one reconciliation run.
type AggregateResult struct {
	Completed     []CompletedEntry  `json:"completed"`
	Suspicious    []SuspiciousEntry `json:"suspicious"`
	Pending       []PendingEntry    `json:"pending"`
	Stats         Stats             `json:"stats"`
	FraudDetected bool              `json:"fraud_detected"`
}
