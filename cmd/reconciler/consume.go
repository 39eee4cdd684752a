package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bridgewatch/internal/application"
	"bridgewatch/internal/infrastructure/telemetry"
	"bridgewatch/internal/interfaces/httpapi"
	"bridgewatch/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultFlushSize     = 500
	defaultFlushInterval = 500 * time.Millisecond
	flushRetryBackoff    = 500 * time.Millisecond
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// consumer moves claim and transfer messages into the snapshot store. Records
// are upserted, so a batch that is redelivered after a crash is harmless.
type consumer struct {
	reader        messageReader
	repo          application.SnapshotRepository
	metrics       *httpapi.Metrics
	logger        *slog.Logger
	batch         *application.Batch
	flushSize     int
	flushInterval time.Duration
}

func newConsumer(reader messageReader, repo application.SnapshotRepository, metrics *httpapi.Metrics, logger *slog.Logger) *consumer {
	if metrics == nil {
		metrics = httpapi.NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &consumer{
		reader:        reader,
		repo:          repo,
		metrics:       metrics,
		logger:        logger,
		batch:         application.NewBatch(),
		flushSize:     defaultFlushSize,
		flushInterval: defaultFlushInterval,
	}
}

func (c *consumer) run(ctx context.Context) error {
	for {
		fetchCtx, cancel := context.WithTimeout(ctx, c.flushInterval)
		message, err := c.reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				c.flush(ctx, "interval")
				continue
			}
			c.metrics.IncKafkaFetchErr()
			c.logger.Error("kafka fetch error", "err", err)
			sleep(ctx, 100*time.Millisecond)
			continue
		}

		c.handle(ctx, message)

		if c.batch.Len() >= c.flushSize {
			c.flush(ctx, "size")
		}
	}
}

func (c *consumer) handle(ctx context.Context, message kafka.Message) {
	decoded, err := streaming.Decode(message.Value)
	if err != nil {
		c.logger.Warn("message decode error", "topic", message.Topic, "offset", message.Offset, "err", err)
		c.metrics.IncKafkaDecodeErr()
		if err := c.reader.CommitMessages(ctx, message); err != nil {
			c.metrics.IncKafkaCommitErr()
		}
		return
	}

	messageCtx := telemetry.ExtractHeaders(ctx, message)
	if !trace.SpanContextFromContext(messageCtx).IsValid() && decoded.TraceID != "" {
		if withTrace, ok := telemetry.ContextWithTraceID(messageCtx, decoded.TraceID); ok {
			messageCtx = withTrace
		}
	}
	_, span := telemetry.Tracer().Start(messageCtx, "reconciler.consume_message", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("message.type", string(decoded.Type)),
		attribute.String("bridge.address", decoded.Bridge),
		attribute.String("messaging.destination", message.Topic),
	)
	c.batch.Add(decoded, message)
	span.End()

	c.metrics.ObserveKafkaMessage(message.Topic, message.Time)
}

func (c *consumer) flush(ctx context.Context, trigger string) {
	if c.batch.Len() == 0 {
		return
	}
	if err := c.batch.Flush(ctx, c.repo, c.reader); err != nil {
		// The batch is kept and retried on the next flush.
		c.logger.Error("batch flush error", "trigger", trigger, "pending", c.batch.Len(), "err", err)
		c.metrics.IncKafkaApplyErr()
		sleep(ctx, flushRetryBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
