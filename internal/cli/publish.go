package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bridgewatch/internal/infrastructure/kafka"
	"bridgewatch/internal/ingest"

	"github.com/spf13/cobra"
)

type snapshotPublisher interface {
	PublishClaims(ctx context.Context, bridge string, claims []ingest.RawClaim) error
	PublishTransfers(ctx context.Context, bridge string, transfers []ingest.RawTransfer) error
	Close() error
}

var newPublisher = func(cfg kafka.ProducerConfig) (snapshotPublisher, error) {
	return kafka.NewProducer(cfg)
}

func newPublishCommand(opts *rootOptions) *cobra.Command {
	var (
		bridge        string
		claimsPath    string
		transfersPath string
		timeout       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish claim and transfer files to the reconciler topics",
		Long: `Publish sends raw claim and transfer records to <prefix>-claims and
<prefix>-transfers so a running reconciler picks them up.

Example:
  bridgewatch publish --bridge 0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb \
    --claims claims.json --transfers transfers.json --brokers localhost:9092`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(bridge) == "" {
				return fmt.Errorf("--bridge is required")
			}
			if claimsPath == "" && transfersPath == "" {
				return fmt.Errorf("at least one of --claims or --transfers is required")
			}

			var claims []ingest.RawClaim
			if claimsPath != "" {
				data, err := readFile(claimsPath)
				if err != nil {
					return fmt.Errorf("read claims: %w", err)
				}
				if claims, err = ingest.ReadClaims(data); err != nil {
					return fmt.Errorf("parse claims: %w", err)
				}
			}
			var transfers []ingest.RawTransfer
			if transfersPath != "" {
				data, err := readFile(transfersPath)
				if err != nil {
					return fmt.Errorf("read transfers: %w", err)
				}
				if transfers, err = ingest.ReadTransfers(data); err != nil {
					return fmt.Errorf("parse transfers: %w", err)
				}
			}

			publisher, err := newPublisher(kafka.ProducerConfig{
				Brokers:     splitList(opts.v.GetString("kafka_brokers")),
				TopicPrefix: opts.v.GetString("kafka_topic_prefix"),
			})
			if err != nil {
				return err
			}
			defer publisher.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if len(claims) > 0 {
				if err := publisher.PublishClaims(ctx, bridge, claims); err != nil {
					return fmt.Errorf("publish claims: %w", err)
				}
			}
			if len(transfers) > 0 {
				if err := publisher.PublishTransfers(ctx, bridge, transfers); err != nil {
					return fmt.Errorf("publish transfers: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d claims and %d transfers for %s\n", len(claims), len(transfers), bridge)
			return nil
		},
	}

	cmd.Flags().StringVar(&bridge, "bridge", "", "bridge address the records belong to")
	cmd.Flags().StringVar(&claimsPath, "claims", "", "claims file (JSON or YAML)")
	cmd.Flags().StringVar(&transfersPath, "transfers", "", "transfers file (JSON or YAML)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "publish timeout")
	cmd.Flags().String("brokers", "localhost:9092", "comma separated kafka brokers")
	cmd.Flags().String("topic-prefix", "bridgewatch", "kafka topic prefix")
	_ = opts.v.BindPFlag("kafka_brokers", cmd.Flags().Lookup("brokers"))
	_ = opts.v.BindPFlag("kafka_topic_prefix", cmd.Flags().Lookup("topic-prefix"))
	return cmd
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
