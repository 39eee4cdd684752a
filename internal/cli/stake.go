package cli

import (
	"encoding/json"
	"fmt"

	"bridgewatch/internal/normalize"
	"bridgewatch/internal/stake"

	"github.com/spf13/cobra"
)

func newStakeCommand(opts *rootOptions) *cobra.Command {
	var (
		leadingRaw    string
		decimals      uint8
		multiplierRaw string
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Quote the stake needed to challenge a claim",
		Long: `Stake computes the counterstake needed to overturn the current outcome of a
claim whose leading side holds --stake (an on-chain integer), and formats it
for display using the token decimals and an optional display multiplier.

Example:
  bridgewatch stake --stake 1000000 --decimals 6
  bridgewatch stake --stake 1000000 --decimals 6 --multiplier 2.5 --coef 200`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			leading, err := normalize.ParseAmount(leadingRaw)
			if err != nil {
				return fmt.Errorf("--stake: %w", err)
			}
			multiplier, err := stake.ParseMultiplier(multiplierRaw)
			if err != nil {
				return fmt.Errorf("--multiplier: %w", err)
			}
			coef := opts.v.GetUint64("counterstake_coef")
			if coef != 0 && coef < 100 {
				return fmt.Errorf("--coef must be at least 100, got %d", coef)
			}

			quote, err := stake.Calculator{Coefficient: coef}.Quote(leading, decimals, multiplier)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]string{
					"stake":          leading.String(),
					"required_stake": quote.Required.String(),
					"display":        quote.Display,
				})
			}
			fmt.Fprintf(out, "required stake: %s\n", quote.Required)
			fmt.Fprintf(out, "display:        %s\n", quote.Display)
			return nil
		},
	}

	cmd.Flags().StringVar(&leadingRaw, "stake", "", "stake on the leading outcome (decimal or 0x hex)")
	cmd.Flags().Uint8Var(&decimals, "decimals", 0, "token decimals")
	cmd.Flags().StringVar(&multiplierRaw, "multiplier", "", "display multiplier (optional)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the quote as JSON")
	cmd.Flags().Uint64("coef", stake.DefaultCoefficient, "counterstake coefficient in percent")
	_ = opts.v.BindPFlag("counterstake_coef", cmd.Flags().Lookup("coef"))
	_ = cmd.MarkFlagRequired("stake")
	return cmd
}
