package reconcile

import (
	"bridgewatch/internal/domain"
	"bridgewatch/internal/normalize"

	"github.com/bits-and-blooms/bitset"
)

// Match pairs one claim with at most one transfer. TransferIndex is -1 when no
// transfer was found.
type Match struct {
	ClaimIndex    int
	TransferIndex int
	Reason        domain.MatchReason
}

// Found reports whether a transfer was assigned to the claim.
func (m Match) Found() bool {
	return m.TransferIndex >= 0
}

// Assignment is the matcher output: one Match per claim, in claim order, and the
// set of transfer indexes consumed during the run. Engine.Run also fills in the
// per-claim outcomes.
type Assignment struct {
	Matches  []Match
	Consumed *bitset.BitSet
	Outcomes []domain.MatchOutcome
}

// IsConsumed reports whether the transfer at index i was paired with a claim.
func (a Assignment) IsConsumed(i int) bool {
	return a.Consumed != nil && i >= 0 && a.Consumed.Test(uint(i))
}

type transferKeys struct {
	hash string
	txid string
}

// MatchClaims pairs claims to transfers in input order. Claims are the outer
// loop; a transfer consumed by an earlier claim is never offered again. A claim
// carrying a txid is matched only by identifier against both transfer hash
// fields. A claim without any txid falls back to matching amount, sender,
// recipient, reward bound and flow. Inputs are not modified.
func MatchClaims(claims []domain.Claim, transfers []domain.Transfer) Assignment {
	keys := make([]transferKeys, len(transfers))
	for i, transfer := range transfers {
		keys[i] = transferKeys{
			hash: normalize.TxID(transfer.TransactionHash),
			txid: normalize.TxID(transfer.TxID),
		}
	}

	consumed := bitset.New(uint(len(transfers)))
	matches := make([]Match, len(claims))
	for ci, claim := range claims {
		match := Match{ClaimIndex: ci, TransferIndex: -1}
		if claim.HasTxID() {
			if ti, ok := matchByTxID(normalize.TxID(claim.TxID), keys, consumed); ok {
				match.TransferIndex = ti
				match.Reason = domain.MatchReasonTxID
			}
		} else if ti, ok := matchByParameters(claim, transfers, consumed); ok {
			match.TransferIndex = ti
			match.Reason = domain.MatchReasonFallback
		}
		if match.Found() {
			consumed.Set(uint(match.TransferIndex))
		}
		matches[ci] = match
	}
	return Assignment{Matches: matches, Consumed: consumed}
}

func matchByTxID(txid string, keys []transferKeys, consumed *bitset.BitSet) (int, bool) {
	if txid == "" {
		return -1, false
	}
	for i, key := range keys {
		if consumed.Test(uint(i)) {
			continue
		}
		if key.hash == txid || key.txid == txid {
			return i, true
		}
	}
	return -1, false
}

func matchByParameters(claim domain.Claim, transfers []domain.Transfer, consumed *bitset.BitSet) (int, bool) {
	for i, transfer := range transfers {
		if consumed.Test(uint(i)) {
			continue
		}
		if !normalize.AmountsMatch(claim.Amount, transfer.Amount).OK {
			continue
		}
		if !normalize.AddressesMatch(claim.SenderAddress, transfer.SenderAddress).OK {
			continue
		}
		if !normalize.AddressesMatch(claim.RecipientAddress, transfer.RecipientAddress).OK {
			continue
		}
		if !rewardCheck(claim, transfer).OK {
			continue
		}
		if !IsValidFlow(transfer.EventType, claim.BridgeType) {
			continue
		}
		return i, true
	}
	return -1, false
}
