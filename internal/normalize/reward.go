package normalize

import "math/big"

// RewardWithinBound checks that a claimant never asks for more reward than the
// transfer offered. A missing claim reward counts as zero.
func RewardWithinBound(claimReward, transferReward *big.Int) Check {
	if claimReward == nil || claimReward.Sign() == 0 {
		return pass(ReasonNoRewardClaimed)
	}
	if claimReward.Sign() < 0 {
		return fail(ReasonNegativeReward)
	}
	if transferReward == nil {
		return fail(ReasonMissingTransferValue)
	}
	if claimReward.Cmp(transferReward) > 0 {
		return fail(ReasonExceedsTransfer)
	}
	return pass(ReasonWithinBound)
}
