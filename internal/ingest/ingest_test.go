package ingest

import (
	"encoding/json"
	"testing"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotDoc = `{
  "bridge": "0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
  "claims": [
    {
      "claim_num": 4,
      "actual_claim_num": "4",
      "bridge_type": "Export",
      "sender_address": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
      "recipient_address": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
      "amount": 5000000000000000000000,
      "reward": "0x0",
      "txHash": "0xABC",
      "home_network": "Ethereum",
      "foreign_network": "Obyte",
      "current_outcome": 1,
      "yes_stake": "1000",
      "expiry_ts": 1700000000
    }
  ],
  "transfers": [
    {
      "event_type": "NewRepatriation",
      "from_network": "Obyte",
      "to_network": "Ethereum",
      "amount": "5000000000000000000000",
      "transaction_hash": "0xabc",
      "block_number": "0x10",
      "timestamp": 1699990000
    }
  ]
}`

func TestQuantity_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
		C Quantity `json:"c"`
		D Quantity `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 123456789012345678901234567890, "b": "0x1f", "c": null}`), &v)
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", v.A.String())
	assert.Equal(t, "0x1f", v.B.String())
	assert.True(t, v.C.Empty())
	assert.True(t, v.D.Empty())

	assert.Error(t, json.Unmarshal([]byte(`{"a": true}`), &v))
}

func TestRawClaim_ReferencePrecedence(t *testing.T) {
	assert.Equal(t, "a", RawClaim{TxID: "a", TransactionHash: "b", TxHash: "c", TxHashSnake: "d"}.Reference())
	assert.Equal(t, "b", RawClaim{TxID: "  ", TransactionHash: "b", TxHash: "c"}.Reference())
	assert.Equal(t, "c", RawClaim{TxHash: "c", TxHashSnake: "d"}.Reference())
	assert.Equal(t, "d", RawClaim{TxHashSnake: " d "}.Reference())
	assert.Equal(t, "", RawClaim{}.Reference())
}

func TestDecodeClaim(t *testing.T) {
	claim, errs := DecodeClaim(RawClaim{
		ClaimNum:         "12",
		ActualClaimNum:   "12",
		BridgeType:       "import_wrapper",
		RecipientAddress: " 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed ",
		Amount:           "0x3e8",
		Reward:           "-5",
		TxID:             "0xabc",
		CurrentOutcome:   "no",
		NoStake:          "10",
	})

	assert.Empty(t, errs)
	assert.Empty(t, claim.ConversionErrors)
	assert.Equal(t, domain.BridgeTypeImportWrapper, claim.BridgeType)
	assert.Equal(t, uint64(12), claim.ActualClaimNum)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", claim.RecipientAddress)
	assert.Equal(t, "1000", claim.Amount.String())
	assert.Equal(t, "-5", claim.Reward.String())
	assert.Equal(t, domain.OutcomeNo, claim.CurrentOutcome)
	assert.Equal(t, "10", claim.NoStake.String())
	assert.Nil(t, claim.YesStake)
}

func TestDecodeClaim_MalformedFieldsAreRecorded(t *testing.T) {
	claim, errs := DecodeClaim(RawClaim{
		ClaimNum:       "3",
		BridgeType:     "Bogus",
		Amount:         "12abc",
		CurrentOutcome: "maybe",
	})

	require.Len(t, errs, 3)
	assert.Nil(t, claim.Amount)
	assert.Equal(t, domain.BridgeType(""), claim.BridgeType)
	assert.ErrorIs(t, errs[0], ErrUnknownEnum)
	assert.Equal(t, "bridge_type", errs[0].Field)
	assert.ErrorIs(t, errs[1], normalize.ErrInvalidAmount)
	assert.Equal(t, "claim 3", errs[1].Record)
	assert.Equal(t, "current_outcome", errs[2].Field)
	assert.Len(t, claim.ConversionErrors, 3)
}

func TestDecodeClaim_MissingAmount(t *testing.T) {
	claim, errs := DecodeClaim(RawClaim{ClaimNum: "1", BridgeType: "export"})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], normalize.ErrEmptyAmount)
	assert.Nil(t, claim.Amount)
}

func TestDecodeTransfer(t *testing.T) {
	transfer, errs := DecodeTransfer(RawTransfer{
		EventType:   "new_expatriation",
		Amount:      "77",
		TxID:        "0xfeed",
		BlockNumber: "0x10",
		Timestamp:   "notatime",
	})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidNumber)
	assert.Equal(t, "transfer 0xfeed", errs[0].Record)
	assert.Equal(t, domain.EventNewExpatriation, transfer.EventType)
	assert.Equal(t, uint64(16), transfer.BlockNumber)
	assert.Equal(t, "", transfer.TransactionHash)
	assert.Equal(t, "0xfeed", transfer.Reference())
	assert.Equal(t, []string{"timestamp: invalid number: strconv.ParseInt: parsing \"notatime\": invalid syntax"}, transfer.ConversionErrors)
}

func TestParseEnums(t *testing.T) {
	for _, raw := range []string{"ImportWrapper", "import-wrapper", "IMPORT_WRAPPER"} {
		bt, ok := ParseBridgeType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, domain.BridgeTypeImportWrapper, bt)
	}
	_, ok := ParseEventType("Transfer")
	assert.False(t, ok)
	outcome, ok := ParseOutcome("1")
	assert.True(t, ok)
	assert.Equal(t, domain.OutcomeYes, outcome)
}

func TestParseSnapshot(t *testing.T) {
	snapshot, err := ParseSnapshot([]byte(snapshotDoc))
	require.NoError(t, err)

	decoded := DecodeSnapshot(snapshot)
	assert.Empty(t, decoded.Errors)
	require.Len(t, decoded.Claims, 1)
	require.Len(t, decoded.Transfers, 1)

	claim := decoded.Claims[0]
	assert.Equal(t, "4", claim.ClaimNum)
	assert.Equal(t, "5000000000000000000000", claim.Amount.String())
	assert.Equal(t, "0xABC", claim.TxID)
	assert.Equal(t, domain.OutcomeYes, claim.CurrentOutcome)
	assert.Equal(t, int64(1700000000), claim.ExpiryTS)
	assert.Equal(t, uint64(16), decoded.Transfers[0].BlockNumber)
}

func TestValidateDocument_Rejects(t *testing.T) {
	tests := []string{
		`{"claims": []}`,
		`{"claims": [{"amount": "1"}], "transfers": []}`,
		`{"claims": [], "transfers": [{"event_type": "NewRepatriation", "amount": true}]}`,
		`not json`,
	}
	for _, doc := range tests {
		assert.ErrorIs(t, ValidateDocument([]byte(doc)), ErrInvalidDocument, doc)
	}
	assert.NoError(t, ValidateDocument([]byte(`{"claims": [], "transfers": []}`)))
}

func TestReadClaimsAndTransfers(t *testing.T) {
	claimsYAML := []byte(`
- claim_num: 1
  bridge_type: export
  amount: 123456789012345678901234567890
  tx_hash: "0xabc"
`)
	claims, err := ReadClaims(claimsYAML)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "123456789012345678901234567890", claims[0].Amount.String())
	assert.Equal(t, "0xabc", claims[0].Reference())

	transfersJSON := []byte(`{"transfers": [{"event_type": "NewRepatriation", "amount": "5", "transaction_hash": "0x1"}]}`)
	transfers, err := ReadTransfers(transfersJSON)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0x1", transfers[0].TransactionHash)

	_, err = ReadClaims([]byte("claims: 5"))
	assert.Error(t, err)
}
