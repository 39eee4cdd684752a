package normalize

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	checksummedA = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	checksummedB = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func TestTxID_CaseAndPaddingInsensitive(t *testing.T) {
	assert.Equal(t, "abc", TxID("0x000ABC"))
	assert.Equal(t, TxID("0x000ABC"), TxID("abc"))
	assert.Equal(t, TxID("abc"), TxID("ABC"))
	assert.Equal(t, "", TxID(""))
	assert.Equal(t, "", TxID("   "))
	assert.Equal(t, "", TxID("0x"))
	assert.Equal(t, "", TxID("0x0000"))
	assert.Equal(t, "", TxID("ab cd"))
}

func TestTxID_Idempotent(t *testing.T) {
	inputs := []string{"0x000ABC", "ABC", "0x0x1", "00x5", " 0XdeadBEEF ", "oXGOcA9TQx8tGZv9", ""}
	for _, input := range inputs {
		once := TxID(input)
		assert.Equal(t, once, TxID(once), "input %q", input)
	}
}

func TestSameTxID_EmptyNeverMatches(t *testing.T) {
	assert.False(t, SameTxID("", ""))
	assert.False(t, SameTxID("0x", "0x000"))
	assert.True(t, SameTxID("0xABC", "abc"))
}

func TestParseAmount(t *testing.T) {
	value, err := ParseAmount("5000000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "5000000000000000000", value.String())

	value, err = ParseAmount("0x10")
	require.NoError(t, err)
	assert.Equal(t, int64(16), value.Int64())

	_, err = ParseAmount("")
	assert.ErrorIs(t, err, ErrEmptyAmount)

	_, err = ParseAmount("12abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseAmount("-1")
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ParseAmount("0x1" + strings.Repeat("0", 64))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseSigned_Negative(t *testing.T) {
	value, err := ParseSigned("-25")
	require.NoError(t, err)
	assert.Equal(t, int64(-25), value.Int64())

	_, err = ParseSigned("--25")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAmountsMatch(t *testing.T) {
	five, ok := new(big.Int).SetString("5000000000000000000", 10)
	require.True(t, ok)
	fivePlusOne := new(big.Int).Add(five, big.NewInt(1))

	assert.Equal(t, Check{OK: true, Reason: ReasonExactMatch}, AmountsMatch(five, "5000000000000000000"))
	assert.Equal(t, Check{OK: false, Reason: ReasonDifferentValues}, AmountsMatch(five, fivePlusOne))
	assert.True(t, AmountsMatch("0x64", 100).OK)
	assert.True(t, AmountsMatch(uint64(7), int64(7)).OK)

	var missing *big.Int
	assert.Equal(t, ReasonConversionError, AmountsMatch(missing, five).Reason)
	assert.Equal(t, ReasonConversionError, AmountsMatch("not-a-number", five).Reason)
	assert.Equal(t, ReasonMissingValue, AmountsMatch("", five).Reason)
	assert.Equal(t, ReasonMissingValue, AmountsMatch(nil, five).Reason)
	assert.Equal(t, ReasonConversionError, AmountsMatch(1.5, five).Reason)
}

func TestAddressesMatch(t *testing.T) {
	tests := []struct {
		name   string
		a, b   string
		ok     bool
		reason string
	}{
		{"checksummed equal", checksummedA, checksummedA, true, ReasonExactMatch},
		{"checksummed different", checksummedA, checksummedB, false, ReasonChecksummedMismatch},
		{"both lowercase equal ignoring case", strings.ToLower(checksummedA), strings.ToLower(checksummedA), false, ReasonBothNonChecksummed},
		{"both uppercase", "0x" + strings.ToUpper(checksummedA[2:]), "0x" + strings.ToUpper(checksummedA[2:]), false, ReasonBothNonChecksummed},
		{"one lowercase", checksummedA, strings.ToLower(checksummedA), false, ReasonMixedChecksumFormat},
		{"bad checksum", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", false, ReasonInvalidChecksum},
		{"missing", "", checksummedA, false, ReasonMissingAddress},
		{"prefix only", "0x", checksummedA, false, ReasonMissingAddress},
		{"non-hex mixed case", "AbcDefGhi", "AbcDefGhi", true, ReasonExactMatch},
		{"0x garbage mixed case", "0xNotAnAddress", "0xNotAnAddress", false, ReasonMalformedAddress},
		{"0x wrong length", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe", checksummedA, false, ReasonMalformedAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := AddressesMatch(tt.a, tt.b)
			assert.Equal(t, tt.ok, check.OK)
			assert.Equal(t, tt.reason, check.Reason)
		})
	}
}

func TestIsChecksummed(t *testing.T) {
	assert.True(t, IsChecksummed(checksummedB))
	assert.False(t, IsChecksummed(strings.ToLower(checksummedB)))
	assert.False(t, IsChecksummed(""))
}

func TestRewardWithinBound(t *testing.T) {
	assert.Equal(t, Check{OK: true, Reason: ReasonNoRewardClaimed}, RewardWithinBound(nil, nil))
	assert.Equal(t, Check{OK: true, Reason: ReasonNoRewardClaimed}, RewardWithinBound(big.NewInt(0), nil))
	assert.Equal(t, Check{OK: true, Reason: ReasonWithinBound}, RewardWithinBound(big.NewInt(5), big.NewInt(10)))
	assert.Equal(t, Check{OK: true, Reason: ReasonWithinBound}, RewardWithinBound(big.NewInt(10), big.NewInt(10)))
	assert.Equal(t, Check{OK: false, Reason: ReasonExceedsTransfer}, RewardWithinBound(big.NewInt(11), big.NewInt(10)))
	assert.Equal(t, Check{OK: false, Reason: ReasonMissingTransferValue}, RewardWithinBound(big.NewInt(1), nil))
	assert.Equal(t, Check{OK: false, Reason: ReasonNegativeReward}, RewardWithinBound(big.NewInt(-1), big.NewInt(10)))
}
