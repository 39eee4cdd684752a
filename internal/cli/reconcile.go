package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"bridgewatch/internal/domain"
	"bridgewatch/internal/ingest"
	"bridgewatch/internal/reconcile"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var claimsPath, transfersPath string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a claims file against a transfers file",
		Long: `Reconcile reads claims and transfers (JSON or YAML, either a bare list or an
object with a "claims"/"transfers" key), classifies every claim and prints the
aggregate result. The command exits with code 2 when fraud is detected.

Example:
  bridgewatch reconcile --claims claims.json --transfers transfers.yaml
  bridgewatch reconcile --claims claims.json --transfers transfers.json --strict --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if claimsPath == "" || transfersPath == "" {
				return fmt.Errorf("--claims and --transfers are required")
			}
			format := opts.v.GetString("output")
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported output format %q", format)
			}

			claims, transfers, err := loadSnapshotFiles(cmd.ErrOrStderr(), claimsPath, transfersPath)
			if err != nil {
				return err
			}

			engine := reconcile.NewEngine(reconcile.Options{
				RequireNetworkMatch: opts.v.GetBool("strict"),
			}, opts.logger(cmd.ErrOrStderr()))
			result, _ := engine.Run(claims, transfers)

			if err := writeResult(cmd.OutOrStdout(), format, result); err != nil {
				return err
			}
			if result.FraudDetected {
				return ErrFraudDetected
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&claimsPath, "claims", "", "claims file (JSON or YAML, - for stdin)")
	cmd.Flags().StringVar(&transfersPath, "transfers", "", "transfers file (JSON or YAML)")
	cmd.Flags().Bool("strict", false, "require claim networks to match the transfer direction")
	cmd.Flags().StringP("output", "o", "json", "output format (json, yaml)")
	_ = opts.v.BindPFlag("strict", cmd.Flags().Lookup("strict"))
	_ = opts.v.BindPFlag("output", cmd.Flags().Lookup("output"))
	return cmd
}

func loadSnapshotFiles(stderr io.Writer, claimsPath, transfersPath string) ([]domain.Claim, []domain.Transfer, error) {
	claimsData, err := readFile(claimsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read claims: %w", err)
	}
	transfersData, err := readFile(transfersPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read transfers: %w", err)
	}
	rawClaims, err := ingest.ReadClaims(claimsData)
	if err != nil {
		return nil, nil, fmt.Errorf("parse claims: %w", err)
	}
	rawTransfers, err := ingest.ReadTransfers(transfersData)
	if err != nil {
		return nil, nil, fmt.Errorf("parse transfers: %w", err)
	}

	decoded := ingest.DecodeSnapshot(ingest.Snapshot{Claims: rawClaims, Transfers: rawTransfers})
	for _, convErr := range decoded.Errors {
		fmt.Fprintf(stderr, "warning: %v\n", convErr)
	}
	return decoded.Claims, decoded.Transfers, nil
}

func writeResult(w io.Writer, format string, result domain.AggregateResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	out, err := jsonToYAML(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// jsonToYAML re-encodes a JSON document as block-style YAML. Going through
// yaml.Node keeps big integers as written instead of rounding them to float64.
func jsonToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("convert result: %w", err)
	}
	resetStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return out, nil
}

func resetStyle(node *yaml.Node) {
	node.Style = 0
	for _, child := range node.Content {
		resetStyle(child)
	}
}
