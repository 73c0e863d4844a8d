package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
)

const defaultScenarioPath = "config/scenario.yaml"

type globalOpts struct {
	logLevel  string
	logFormat string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalOpts

	root := &cobra.Command{
		Use:   "marketsim",
		Short: "Hourly electricity market simulator",
		Long: `marketsim generates synthetic hourly electricity market datasets.

Each hour it samples regime-switching drivers (fuel prices, capacities,
availabilities, efficiencies), builds a merit-order supply curve and a
seasonal demand curve, and clears the market on a price grid.

Examples:
  marketsim run config/scenario.yaml --out-dir outputs
  marketsim validate config/scenario.yaml
  marketsim serve
  marketsim submit config/scenario.yaml --grpc-addr localhost:9090`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetDefault(logger.NewWithFormat(g.logLevel, g.logFormat, stderr))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newServeCmd(),
		newSubmitCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func scenarioArg(args []string) string {
	return scenarioArgs(args)[0]
}

// scenarioArgs returns the scenario paths given on the command line, or the
// default scenario when there are none.
func scenarioArgs(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return []string{defaultScenarioPath}
}
