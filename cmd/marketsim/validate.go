package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/marketsim/internal/runner"
	"github.com/GoSim-25-26J-441/marketsim/pkg/config"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [scenario.yaml ...]",
		Short: "Check scenarios and build their regime schedules without simulating",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range scenarioArgs(args) {
				cfg, err := config.LoadScenario(path)
				if err != nil {
					return err
				}
				plan, err := runner.Validate(cfg)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				first, last := plan.Span()
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s mode, %d variables, %d hours %s .. %s, %d grid points)\n",
					path, plan.Scenario.Mode, len(plan.Scenario.Order), plan.Hours(),
					first.Format("2006-01-02 15:04"), last.Format("2006-01-02 15:04"), len(plan.Grid))
			}
			return nil
		},
	}
}
