package domain

import "strings"

// Field names used in conversion error messages ("<field>: <cause>").
const (
	FieldAmount         = "amount"
	FieldReward         = "reward"
	FieldYesStake       = "yes_stake"
	FieldNoStake        = "no_stake"
	FieldCurrentOutcome = "current_outcome"
)

// FieldInvalid reports whether the named field was present in the source
// record but could not be converted. A nil value with FieldInvalid false means
// the field was absent.
func (c Claim) FieldInvalid(field string) bool {
	return hasConversionError(c.ConversionErrors, field)
}

// FieldInvalid is the transfer counterpart of Claim.FieldInvalid.
func (t Transfer) FieldInvalid(field string) bool {
	return hasConversionError(t.ConversionErrors, field)
}

func hasConversionError(errs []string, field string) bool {
	prefix := field + ":"
	for _, e := range errs {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}
