package kafka

import (
	"context"
	"errors"
	"testing"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/ingest"
	"bridgewatch/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishClaimsAndTransfers(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, ProducerConfig{TopicPrefix: "cs"})

	err := producer.PublishClaims(context.Background(), "0xbridge", []ingest.RawClaim{{ClaimNum: "1"}, {ClaimNum: "2"}})
	require.NoError(t, err)
	err = producer.PublishTransfers(context.Background(), "0xbridge", []ingest.RawTransfer{{TransactionHash: "0x1"}})
	require.NoError(t, err)

	require.Len(t, writer.msgs, 3)
	assert.Equal(t, "cs-claims", writer.msgs[0].Topic)
	assert.Equal(t, "cs-transfers", writer.msgs[2].Topic)
	assert.Equal(t, []byte("0xbridge"), writer.msgs[1].Key)

	msg, err := streaming.Decode(writer.msgs[1].Value)
	require.NoError(t, err)
	assert.Equal(t, "2", msg.Claim.ClaimNum.String())
}

func TestPublishAlert(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, ProducerConfig{})

	report := domain.Report{
		RunID:  "run-1",
		Bridge: "0xbridge",
		Result: domain.AggregateResult{
			Stats:         domain.Stats{Suspicious: 1},
			Suspicious:    []domain.SuspiciousEntry{{Reason: domain.ReasonNoMatchingTransfer}},
			FraudDetected: true,
		},
	}
	require.NoError(t, producer.PublishAlert(context.Background(), report))

	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "bridgewatch-alerts", writer.msgs[0].Topic)
	msg, err := streaming.Decode(writer.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "run-1", msg.Alert.RunID)
	assert.Len(t, msg.Alert.Suspicious, 1)
}

func TestPublishNothingIsNoop(t *testing.T) {
	writer := &fakeWriter{err: errors.New("unreachable")}
	producer := NewProducerWithWriter(writer, ProducerConfig{})
	assert.NoError(t, producer.PublishClaims(context.Background(), "b", nil))
}

func TestPublishWriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	producer := NewProducerWithWriter(writer, ProducerConfig{})
	err := producer.PublishTransfers(context.Background(), "b", []ingest.RawTransfer{{}})
	assert.EqualError(t, err, "broker down")
}

func TestNewReaderValidation(t *testing.T) {
	_, err := NewReader(ConsumerConfig{})
	assert.Error(t, err)
	_, err = NewReader(ConsumerConfig{Brokers: []string{"b:9092"}})
	assert.Error(t, err)
	_, err = NewReader(ConsumerConfig{Brokers: []string{"b:9092"}, GroupID: "g"})
	assert.Error(t, err)
}
