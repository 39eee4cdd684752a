package streaming

import (
	"encoding/json"
	"errors"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/ingest"
)

type MessageType string

const (
	MessageTypeClaim    MessageType = "claim"
	MessageTypeTransfer MessageType = "transfer"
	MessageTypeAlert    MessageType = "alert"
)

// Message is the envelope carried on the claim, transfer and alert topics.
// Exactly one of Claim, Transfer or Alert is set, according to Type.
type Message struct {
	Type     MessageType         `json:"type"`
	Bridge   string              `json:"bridge"`
	TraceID  string              `json:"trace_id,omitempty"`
	Claim    *ingest.RawClaim    `json:"claim,omitempty"`
	Transfer *ingest.RawTransfer `json:"transfer,omitempty"`
	Alert    *Alert              `json:"alert,omitempty"`
}

// Alert is published when a reconciliation run detects fraud.
type Alert struct {
	RunID      string                   `json:"run_id"`
	Stats      domain.Stats             `json:"stats"`
	Suspicious []domain.SuspiciousEntry `json:"suspicious"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	if msg.Bridge == "" {
		return errors.New("bridge is required")
	}
	switch msg.Type {
	case MessageTypeClaim:
		if msg.Claim == nil {
			return errors.New("claim message without claim")
		}
	case MessageTypeTransfer:
		if msg.Transfer == nil {
			return errors.New("transfer message without transfer")
		}
	case MessageTypeAlert:
		if msg.Alert == nil {
			return errors.New("alert message without alert")
		}
	case "":
		return errors.New("message type is required")
	default:
		return errors.New("unknown message type " + string(msg.Type))
	}
	return nil
}
