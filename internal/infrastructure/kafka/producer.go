package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/infrastructure/telemetry"
	"bridgewatch/internal/ingest"
	"bridgewatch/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer     MessageWriter
	prefix     string
	alertTopic string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
	AlertTopic  string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           200 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, cfg), nil
}

// NewProducerWithWriter wires a producer to an existing writer.
func NewProducerWithWriter(writer MessageWriter, cfg ProducerConfig) *Producer {
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = "bridgewatch"
	}
	if strings.TrimSpace(cfg.AlertTopic) == "" {
		cfg.AlertTopic = cfg.TopicPrefix + "-alerts"
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix, alertTopic: cfg.AlertTopic}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishClaims sends raw claim records to the claims topic, keyed by bridge
// so one bridge's records stay ordered within a partition.
func (p *Producer) PublishClaims(ctx context.Context, bridge string, claims []ingest.RawClaim) error {
	msgs := make([]streaming.Message, len(claims))
	for i := range claims {
		msgs[i] = streaming.Message{Type: streaming.MessageTypeClaim, Bridge: bridge, Claim: &claims[i]}
	}
	return p.publish(ctx, p.prefix+"-claims", "publish_claims", bridge, msgs)
}

// PublishTransfers sends raw transfer records to the transfers topic.
func (p *Producer) PublishTransfers(ctx context.Context, bridge string, transfers []ingest.RawTransfer) error {
	msgs := make([]streaming.Message, len(transfers))
	for i := range transfers {
		msgs[i] = streaming.Message{Type: streaming.MessageTypeTransfer, Bridge: bridge, Transfer: &transfers[i]}
	}
	return p.publish(ctx, p.prefix+"-transfers", "publish_transfers", bridge, msgs)
}

// PublishAlert announces a report that detected fraud.
func (p *Producer) PublishAlert(ctx context.Context, report domain.Report) error {
	msg := streaming.Message{
		Type:   streaming.MessageTypeAlert,
		Bridge: report.Bridge,
		Alert: &streaming.Alert{
			RunID:      report.RunID,
			Stats:      report.Result.Stats,
			Suspicious: report.Result.Suspicious,
		},
	}
	return p.publish(ctx, p.alertTopic, "publish_alert", report.Bridge, []streaming.Message{msg})
}

func (p *Producer) publish(ctx context.Context, topic, op, bridge string, msgs []streaming.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ctx, span := telemetry.Tracer().Start(ctx, "kafka."+op, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", topic),
		attribute.String("bridge.address", bridge),
		attribute.Int("messaging.batch.message_count", len(msgs)),
	)

	traceID := span.SpanContext().TraceID().String()
	out := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		if span.SpanContext().HasTraceID() {
			msg.TraceID = traceID
		}
		payload, err := streaming.Encode(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		km := kafka.Message{Topic: topic, Key: []byte(bridge), Value: payload}
		telemetry.InjectHeaders(ctx, &km)
		out = append(out, km)
	}
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
