package domain

import "math/big"

// EventType is the kind of source-chain transfer event.
type EventType string

const (
	EventNewExpatriation EventType = "NewExpatriation"
	EventNewRepatriation EventType = "NewRepatriation"
)

// Transfer is an observed source-chain transfer event.
type Transfer struct {
	EventType        EventType  `json:"event_type"`
	FromNetwork      string     `json:"from_network"`
	ToNetwork        string     `json:"to_network"`
	SenderAddress    string     `json:"sender_address"`
	RecipientAddress string     `json:"recipient_address"`
	Amount           *big.Int   `json:"amount"`
	Reward           *big.Int   `json:"reward,omitempty"`
	Data             string     `json:"data,omitempty"`
	TransactionHash  string     `json:"transaction_hash"`
	TxID             string     `json:"txid,omitempty"`
	BlockNumber      uint64     `json:"block_number"`
	Timestamp        int64      `json:"timestamp"`
	BridgeAddress    string     `json:"bridge_address"`
	BridgeType       BridgeType `json:"bridge_type,omitempty"`
	ConversionErrors []string   `json:"conversion_errors,omitempty"`
}

// Reference returns the hash used to identify the transfer in logs and storage.
func (t Transfer) Reference() string {
	if t.TransactionHash != "" {
		return t.TransactionHash
	}
	return t.TxID
}
