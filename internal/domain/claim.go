package domain

import (
	"math/big"
	"strings"
)

// BridgeType is the role of the bridge contract a claim was filed on.
type BridgeType string

const (
	BridgeTypeExport        BridgeType = "export"
	BridgeTypeImport        BridgeType = "import"
	BridgeTypeImportWrapper BridgeType = "import_wrapper"
)

// Outcome is the side of a counterstake dispute.
type Outcome string

const (
	OutcomeYes Outcome = "yes"
	OutcomeNo  Outcome = "no"
)

// Opposite returns the outcome a challenger stakes on.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

// Claim is an attestation filed on the destination chain that a transfer happened.
type Claim struct {
	ClaimNum         string     `json:"claim_num"`
	ActualClaimNum   uint64     `json:"actual_claim_num"`
	BridgeAddress    string     `json:"bridge_address"`
	BridgeType       BridgeType `json:"bridge_type"`
	SenderAddress    string     `json:"sender_address"`
	RecipientAddress string     `json:"recipient_address"`
	Amount           *big.Int   `json:"amount"`
	Reward           *big.Int   `json:"reward,omitempty"`
	Data             string     `json:"data,omitempty"`
	TxID             string     `json:"txid,omitempty"`
	HomeNetwork      string     `json:"home_network"`
	ForeignNetwork   string     `json:"foreign_network"`
	CurrentOutcome   Outcome    `json:"current_outcome"`
	YesStake         *big.Int   `json:"yes_stake,omitempty"`
	NoStake          *big.Int   `json:"no_stake,omitempty"`
	ExpiryTS         int64      `json:"expiry_ts"`
	Finished         bool       `json:"finished"`
	Withdrawn        bool       `json:"withdrawn"`
	BlockNumber      uint64     `json:"block_number,omitempty"`
	ConversionErrors []string   `json:"conversion_errors,omitempty"`
}

// HasTxID reports whether the claim carried any cross-chain reference at all.
func (c Claim) HasTxID() bool {
	return strings.TrimSpace(c.TxID) != ""
}

// StakeOn returns the stake currently placed on the given outcome, never nil.
func (c Claim) StakeOn(outcome Outcome) *big.Int {
	var stake *big.Int
	if outcome == OutcomeYes {
		stake = c.YesStake
	} else {
		stake = c.NoStake
	}
	if stake == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(stake)
}
