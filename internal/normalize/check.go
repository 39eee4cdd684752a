// Package normalize holds the comparison primitives shared by ingestion and
// reconciliation. None of them return errors: a value that cannot be parsed or
// compared produces a failed Check with a machine-readable reason.
package normalize

// Reasons reported by the comparison primitives.
const (
	ReasonExactMatch      = "exact_match"
	ReasonDifferentValues = "different_values"
	ReasonConversionError = "conversion_error"
	ReasonMissingValue    = "missing_value"

	ReasonChecksummedMismatch = "checksummed_format_mismatch"
	ReasonBothNonChecksummed  = "both_non_checksummed"
	ReasonMixedChecksumFormat = "mixed_checksum_format"
	ReasonInvalidChecksum     = "invalid_checksum"
	ReasonMissingAddress      = "missing_address"
	ReasonMalformedAddress    = "malformed_address"

	ReasonNoRewardClaimed      = "no_reward_claimed"
	ReasonWithinBound          = "within_bound"
	ReasonExceedsTransfer      = "exceeds_transfer_reward"
	ReasonMissingTransferValue = "missing_transfer_reward"
	ReasonNegativeReward       = "negative_reward"
)

// Check is the outcome of one comparison.
type Check struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

func pass(reason string) Check { return Check{OK: true, Reason: reason} }

func fail(reason string) Check { return Check{OK: false, Reason: reason} }
