package normalize

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type addressCase int

const (
	caseMissing addressCase = iota
	caseNonChecksummed
	caseChecksummed
	caseInvalidChecksum
	caseMalformed
)

// AddressesMatch compares two addresses under the conservative checksum policy:
// only two checksummed addresses that are byte-for-byte equal match. Addresses
// written entirely in one case are rejected even when they would compare equal
// ignoring case. Mixed-case 0x addresses must also carry a valid EIP-55 checksum.
func AddressesMatch(a, b string) Check {
	left := classifyAddress(a)
	right := classifyAddress(b)

	switch {
	case left == caseMissing || right == caseMissing:
		return fail(ReasonMissingAddress)
	case left == caseMalformed || right == caseMalformed:
		return fail(ReasonMalformedAddress)
	case left == caseInvalidChecksum || right == caseInvalidChecksum:
		return fail(ReasonInvalidChecksum)
	case left == caseChecksummed && right == caseChecksummed:
		if strings.TrimSpace(a) == strings.TrimSpace(b) {
			return pass(ReasonExactMatch)
		}
		return fail(ReasonChecksummedMismatch)
	case left == caseNonChecksummed && right == caseNonChecksummed:
		return fail(ReasonBothNonChecksummed)
	default:
		return fail(ReasonMixedChecksumFormat)
	}
}

// IsChecksummed reports whether an address is written in a checksummed
// (mixed-case) form that passes EIP-55 verification where applicable.
func IsChecksummed(address string) bool {
	return classifyAddress(address) == caseChecksummed
}

func classifyAddress(raw string) addressCase {
	address := strings.TrimSpace(raw)
	if address == "" {
		return caseMissing
	}
	body := address
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		body = body[2:]
	}
	if body == "" {
		return caseMissing
	}
	hexPrefixed := len(body) != len(address)
	if hexPrefixed && !common.IsHexAddress(address) {
		return caseMalformed
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return caseNonChecksummed
	}
	if common.IsHexAddress(address) && common.HexToAddress(address).Hex() != address {
		return caseInvalidChecksum
	}
	return caseChecksummed
}
