package cmd

import (
	"context"

	"github.com/relloyd/starpipe/actions"
	"github.com/relloyd/starpipe/helper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var checkCfg = actions.CheckConfig{}
var checkNames string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run data quality checks against the tables in the store",
	Long: `Run the built-in and custom data quality checks against the raw, cleansed and
dimensional tables held in the store. Violations are reported but do not
fail the command unless --fail-on-violation is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runCheck(ctx, cmd.Flags())
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().SortFlags = false
	addPipelineFlags(checkCmd)
	switches.addFlag(checkCmd, &checkNames, "checks", "", false, "")
	switches.addFlag(checkCmd, &checkCfg.FailOnViolation, "fail-on-violation", "", false, "")
	switches.addFlag(checkCmd, &checkCfg.Output, "output", "text", false, "")
}

func runCheck(ctx context.Context, f *pflag.FlagSet) error {
	p, err := loadPipeline(f)
	if err != nil {
		return err
	}
	checkCfg.Pipeline = p
	checkCfg.Checks = helper.CsvToStringSliceTrimSpaces(checkNames)
	checkCfg.StackDumpOnPanic = stackDumpOnPanic
	return actions.RunChecks(ctx, &checkCfg)
}
