// Package cli implements the bridgewatch command line: offline reconciliation
// of snapshot files, stake quotes and publishing snapshots to Kafka.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"bridgewatch/internal/infrastructure/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ErrFraudDetected is returned by the reconcile command when at least one
// claim was classified as suspicious. Callers map it to exit code 2.
var ErrFraudDetected = errors.New("fraud detected")

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

type rootOptions struct {
	cfgFile  string
	logLevel string
	v        *viper.Viper
}

// NewRootCommand builds the command tree. Each call gets its own viper
// instance so commands can be executed repeatedly in tests.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "bridgewatch",
		Short: "Counterstake bridge claim reconciliation and fraud detection",
		Long: `bridgewatch pairs claims filed on a destination chain with the transfers
that were sent on the source chain, flags claims without a valid transfer as
suspicious and lists transfers nobody has claimed yet.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (BRIDGEWATCH_*)
3. Config file (--config, YAML)
4. Defaults`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initConfig()
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level for decision traces (debug, info, warn, error)")
	_ = opts.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newReconcileCommand(opts),
		newStakeCommand(opts),
		newPublishCommand(opts),
		newVersionCommand(info),
	)
	return root
}

// Execute runs the CLI against os.Args.
func Execute(info BuildInfo) error {
	return NewRootCommand(info).Execute()
}

func (o *rootOptions) initConfig() error {
	o.v.SetEnvPrefix("BRIDGEWATCH")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()

	if o.cfgFile == "" {
		return nil
	}
	o.v.SetConfigFile(o.cfgFile)
	o.v.SetConfigType("yaml")
	if err := o.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", o.cfgFile, err)
	}
	return nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	return slog.New(logging.NewHandler(w, "text", logging.ParseLevel(o.v.GetString("log_level"))))
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bridgewatch %s (commit %s, built %s)\n",
				valueOr(info.Version, "dev"), valueOr(info.Commit, "unknown"), valueOr(info.BuildTime, "unknown"))
		},
	}
}

func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
