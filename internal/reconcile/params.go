package reconcile

import (
	"bridgewatch/internal/domain"
	"bridgewatch/internal/normalize"
)

// Names of the parameter checks, used in evidence records.
const (
	CheckAmount    = "amount"
	CheckRecipient = "recipient_address"
	CheckReward    = "reward"
	CheckFlow      = "flow"
)

// ValidateParameters re-checks a matched pair. It runs on identifier matches
// too: a reused txid with a tampered amount or recipient must not pass. Sender
// and data are not compared because relayers file claims on behalf of senders.
func ValidateParameters(claim domain.Claim, transfer domain.Transfer, strict bool) domain.Validation {
	var validation domain.Validation

	amount := normalize.AmountsMatch(claim.Amount, transfer.Amount)
	validation.AmountsMatch = amount.OK
	if !amount.OK {
		validation.Evidence = append(validation.Evidence, domain.Evidence{
			Check:         CheckAmount,
			Reason:        amount.Reason,
			ClaimValue:    formatInt(claim.Amount),
			TransferValue: formatInt(transfer.Amount),
		})
	}

	recipient := normalize.AddressesMatch(claim.RecipientAddress, transfer.RecipientAddress)
	validation.RecipientsMatch = recipient.OK
	if !recipient.OK {
		validation.Evidence = append(validation.Evidence, domain.Evidence{
			Check:         CheckRecipient,
			Reason:        recipient.Reason,
			ClaimValue:    claim.RecipientAddress,
			TransferValue: transfer.RecipientAddress,
		})
	}

	reward := rewardCheck(claim, transfer)
	validation.RewardValid = reward.OK
	if !reward.OK {
		validation.Evidence = append(validation.Evidence, domain.Evidence{
			Check:         CheckReward,
			Reason:        reward.Reason,
			ClaimValue:    formatInt(claim.Reward),
			TransferValue: formatInt(transfer.Reward),
		})
	}

	flow := flowCheck(claim, transfer, strict)
	validation.IsValidFlow = flow.Valid
	if !flow.Valid {
		validation.Evidence = append(validation.Evidence, domain.Evidence{
			Check:         CheckFlow,
			Reason:        flow.Reason,
			ClaimValue:    string(claim.BridgeType) + " " + claim.HomeNetwork + "/" + claim.ForeignNetwork,
			TransferValue: string(transfer.EventType) + " " + transfer.FromNetwork + "->" + transfer.ToNetwork,
		})
	}

	return validation
}

// rewardCheck treats a reward that was supplied but failed to parse as a
// conversion error. Only a reward that was absent counts as zero.
func rewardCheck(claim domain.Claim, transfer domain.Transfer) normalize.Check {
	if claim.FieldInvalid(domain.FieldReward) || transfer.FieldInvalid(domain.FieldReward) {
		return normalize.Check{OK: false, Reason: normalize.ReasonConversionError}
	}
	return normalize.RewardWithinBound(claim.Reward, transfer.Reward)
}

func flowCheck(claim domain.Claim, transfer domain.Transfer, strict bool) FlowDiagnosis {
	if strict {
		return DiagnoseFlow(claim, transfer)
	}
	if IsValidFlow(transfer.EventType, claim.BridgeType) {
		return FlowDiagnosis{Valid: true, Reason: FlowOK}
	}
	return FlowDiagnosis{Reason: FlowInvalidPair}
}
