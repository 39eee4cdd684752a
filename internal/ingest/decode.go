// Package ingest turns raw claim and transfer records, in whatever shape a
// chain or indexer produced them, into fixed-shape domain values. A malformed
// field never fails the batch: the record is kept, the field is left empty and
// a conversion error is attached so every comparison it reaches fails closed.
package ingest

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/normalize"
)

var (
	ErrUnknownEnum   = errors.New("unknown enum value")
	ErrInvalidNumber = errors.New("invalid number")
)

// RawClaim is a claim record before canonicalization. The cross-chain
// reference shows up under several names; see Reference.
type RawClaim struct {
	ClaimNum         Quantity `json:"claim_num" yaml:"claim_num"`
	ActualClaimNum   Quantity `json:"actual_claim_num" yaml:"actual_claim_num"`
	BridgeAddress    string   `json:"bridge_address" yaml:"bridge_address"`
	BridgeType       string   `json:"bridge_type" yaml:"bridge_type"`
	SenderAddress    string   `json:"sender_address" yaml:"sender_address"`
	RecipientAddress string   `json:"recipient_address" yaml:"recipient_address"`
	Amount           Quantity `json:"amount" yaml:"amount"`
	Reward           Quantity `json:"reward" yaml:"reward"`
	Data             string   `json:"data" yaml:"data"`
	TxID             string   `json:"txid" yaml:"txid"`
	TransactionHash  string   `json:"transaction_hash" yaml:"transaction_hash"`
	TxHash           string   `json:"txHash" yaml:"txHash"`
	TxHashSnake      string   `json:"tx_hash" yaml:"tx_hash"`
	HomeNetwork      string   `json:"home_network" yaml:"home_network"`
	ForeignNetwork   string   `json:"foreign_network" yaml:"foreign_network"`
	CurrentOutcome   Quantity `json:"current_outcome" yaml:"current_outcome"`
	YesStake         Quantity `json:"yes_stake" yaml:"yes_stake"`
	NoStake          Quantity `json:"no_stake" yaml:"no_stake"`
	ExpiryTS         Quantity `json:"expiry_ts" yaml:"expiry_ts"`
	Finished         bool     `json:"finished" yaml:"finished"`
	Withdrawn        bool     `json:"withdrawn" yaml:"withdrawn"`
	BlockNumber      Quantity `json:"block_number" yaml:"block_number"`
}

// Reference returns the first non-blank of txid, transaction_hash, txHash and
// tx_hash.
func (r RawClaim) Reference() string {
	for _, v := range []string{r.TxID, r.TransactionHash, r.TxHash, r.TxHashSnake} {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// RawTransfer is a source-chain event record before canonicalization.
type RawTransfer struct {
	EventType        string   `json:"event_type" yaml:"event_type"`
	FromNetwork      string   `json:"from_network" yaml:"from_network"`
	ToNetwork        string   `json:"to_network" yaml:"to_network"`
	SenderAddress    string   `json:"sender_address" yaml:"sender_address"`
	RecipientAddress string   `json:"recipient_address" yaml:"recipient_address"`
	Amount           Quantity `json:"amount" yaml:"amount"`
	Reward           Quantity `json:"reward" yaml:"reward"`
	Data             string   `json:"data" yaml:"data"`
	TransactionHash  string   `json:"transaction_hash" yaml:"transaction_hash"`
	TxID             string   `json:"txid" yaml:"txid"`
	BlockNumber      Quantity `json:"block_number" yaml:"block_number"`
	Timestamp        Quantity `json:"timestamp" yaml:"timestamp"`
	BridgeAddress    string   `json:"bridge_address" yaml:"bridge_address"`
	BridgeType       string   `json:"bridge_type" yaml:"bridge_type"`
}

// ConversionError records one field that could not be converted.
type ConversionError struct {
	Record string `json:"record"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Err    error  `json:"-"`
}

func (e ConversionError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", e.Record, e.Field, e.Value, e.Err)
}

func (e ConversionError) Unwrap() error { return e.Err }

type collector struct {
	record string
	errs   []ConversionError
}

func (c *collector) add(field, value string, err error) {
	c.errs = append(c.errs, ConversionError{Record: c.record, Field: field, Value: value, Err: err})
}

func (c *collector) messages() []string {
	if len(c.errs) == 0 {
		return nil
	}
	out := make([]string, len(c.errs))
	for i, e := range c.errs {
		out[i] = fmt.Sprintf("%s: %v", e.Field, e.Err)
	}
	return out
}

// amount parses an unsigned quantity; required fields report an empty value.
func (c *collector) amount(field string, q Quantity, required bool) *big.Int {
	if q.Empty() {
		if required {
			c.add(field, "", normalize.ErrEmptyAmount)
		}
		return nil
	}
	v, err := normalize.ParseAmount(q.String())
	if err != nil {
		c.add(field, q.String(), err)
		return nil
	}
	return v
}

func (c *collector) signed(field string, q Quantity) *big.Int {
	if q.Empty() {
		return nil
	}
	v, err := normalize.ParseSigned(q.String())
	if err != nil {
		c.add(field, q.String(), err)
		return nil
	}
	return v
}

func (c *collector) counter(field string, q Quantity) uint64 {
	if q.Empty() {
		return 0
	}
	v, err := q.Uint64()
	if err != nil {
		c.add(field, q.String(), fmt.Errorf("%w: %v", ErrInvalidNumber, err))
		return 0
	}
	return v
}

func (c *collector) unixTime(field string, q Quantity) int64 {
	if q.Empty() {
		return 0
	}
	v, err := q.Int64()
	if err != nil {
		c.add(field, q.String(), fmt.Errorf("%w: %v", ErrInvalidNumber, err))
		return 0
	}
	return v
}

func (c *collector) bridgeType(raw string, required bool) domain.BridgeType {
	if strings.TrimSpace(raw) == "" && !required {
		return ""
	}
	bt, ok := ParseBridgeType(raw)
	if !ok {
		c.add("bridge_type", raw, ErrUnknownEnum)
	}
	return bt
}

// DecodeClaim converts a raw claim. The returned errors are also attached to
// the claim as ConversionErrors.
func DecodeClaim(raw RawClaim) (domain.Claim, []ConversionError) {
	c := &collector{record: "claim " + raw.ClaimNum.String()}

	claim := domain.Claim{
		ClaimNum:         raw.ClaimNum.String(),
		ActualClaimNum:   c.counter("actual_claim_num", raw.ActualClaimNum),
		BridgeAddress:    strings.TrimSpace(raw.BridgeAddress),
		BridgeType:       c.bridgeType(raw.BridgeType, true),
		SenderAddress:    strings.TrimSpace(raw.SenderAddress),
		RecipientAddress: strings.TrimSpace(raw.RecipientAddress),
		Amount:           c.amount(domain.FieldAmount, raw.Amount, true),
		Reward:           c.signed(domain.FieldReward, raw.Reward),
		Data:             raw.Data,
		TxID:             raw.Reference(),
		HomeNetwork:      strings.TrimSpace(raw.HomeNetwork),
		ForeignNetwork:   strings.TrimSpace(raw.ForeignNetwork),
		YesStake:         c.amount(domain.FieldYesStake, raw.YesStake, false),
		NoStake:          c.amount(domain.FieldNoStake, raw.NoStake, false),
		ExpiryTS:         c.unixTime("expiry_ts", raw.ExpiryTS),
		Finished:         raw.Finished,
		Withdrawn:        raw.Withdrawn,
		BlockNumber:      c.counter("block_number", raw.BlockNumber),
	}
	if claim.ClaimNum == "" && claim.ActualClaimNum > 0 {
		claim.ClaimNum = raw.ActualClaimNum.String()
	}
	if !raw.CurrentOutcome.Empty() {
		outcome, ok := ParseOutcome(raw.CurrentOutcome.String())
		if !ok {
			c.add(domain.FieldCurrentOutcome, raw.CurrentOutcome.String(), ErrUnknownEnum)
		}
		claim.CurrentOutcome = outcome
	}
	claim.ConversionErrors = c.messages()
	return claim, c.errs
}

// DecodeTransfer converts a raw transfer event.
func DecodeTransfer(raw RawTransfer) (domain.Transfer, []ConversionError) {
	hash := strings.TrimSpace(raw.TransactionHash)
	if hash == "" {
		hash = strings.TrimSpace(raw.TxID)
	}
	c := &collector{record: "transfer " + hash}

	transfer := domain.Transfer{
		FromNetwork:      strings.TrimSpace(raw.FromNetwork),
		ToNetwork:        strings.TrimSpace(raw.ToNetwork),
		SenderAddress:    strings.TrimSpace(raw.SenderAddress),
		RecipientAddress: strings.TrimSpace(raw.RecipientAddress),
		Amount:           c.amount(domain.FieldAmount, raw.Amount, true),
		Reward:           c.signed(domain.FieldReward, raw.Reward),
		Data:             raw.Data,
		TransactionHash:  strings.TrimSpace(raw.TransactionHash),
		TxID:             strings.TrimSpace(raw.TxID),
		BlockNumber:      c.counter("block_number", raw.BlockNumber),
		Timestamp:        c.unixTime("timestamp", raw.Timestamp),
		BridgeAddress:    strings.TrimSpace(raw.BridgeAddress),
		BridgeType:       c.bridgeType(raw.BridgeType, false),
	}
	event, ok := ParseEventType(raw.EventType)
	if !ok {
		c.add("event_type", raw.EventType, ErrUnknownEnum)
	}
	transfer.EventType = event
	transfer.ConversionErrors = c.messages()
	return transfer, c.errs
}

// ParseBridgeType accepts the contract role in any casing, with or without
// separators ("ImportWrapper", "import_wrapper", "import-wrapper").
func ParseBridgeType(raw string) (domain.BridgeType, bool) {
	switch squash(raw) {
	case "export":
		return domain.BridgeTypeExport, true
	case "import":
		return domain.BridgeTypeImport, true
	case "importwrapper":
		return domain.BridgeTypeImportWrapper, true
	}
	return "", false
}

// ParseEventType accepts "NewExpatriation" style names and the short forms.
func ParseEventType(raw string) (domain.EventType, bool) {
	switch squash(raw) {
	case "newexpatriation", "expatriation":
		return domain.EventNewExpatriation, true
	case "newrepatriation", "repatriation":
		return domain.EventNewRepatriation, true
	}
	return "", false
}

// ParseOutcome accepts yes/no and the on-chain numeric encoding (1 yes, 0 no).
func ParseOutcome(raw string) (domain.Outcome, bool) {
	switch squash(raw) {
	case "yes", "1", "true":
		return domain.OutcomeYes, true
	case "no", "0", "false":
		return domain.OutcomeNo, true
	}
	return "", false
}

func squash(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
