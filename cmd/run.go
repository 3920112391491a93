package cmd

import (
	"context"

	"github.com/relloyd/starpipe/actions"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var runCfg = actions.RunConfig{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load, cleanse and conform the raw sources then run the quality checks",
	Long: `Load the raw CRM and ERP sources named in the pipeline file, replace the raw,
cleansed and dimensional tables in the store and validate the result.
The run stops at the first stage that fails; tables written by earlier stages are kept.
Use --export-dir or --export-s3 to write the dimensional tables as CSV afterwards.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runRun(ctx, cmd.Flags())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SortFlags = false
	addPipelineFlags(runCmd)
	addRunFlags(runCmd)
	switches.addFlag(runCmd, &pipeFlags.exportDir, "export-dir", "", false, "")
	switches.addFlag(runCmd, &pipeFlags.exportS3, "export-s3", "", false, "")
	switches.addFlag(runCmd, &runCfg.Output, "output", "text", false, "")
}

func runRun(ctx context.Context, f *pflag.FlagSet) error {
	p, err := loadPipeline(f)
	if err != nil {
		return err
	}
	runCfg.Pipeline = p
	runCfg.StackDumpOnPanic = stackDumpOnPanic
	return actions.RunPipe(ctx, &runCfg)
}
