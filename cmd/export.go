package cmd

import (
	"context"

	"github.com/relloyd/starpipe/actions"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var exportCfg = actions.ExportConfig{}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the dimensional tables in the store to CSV files",
	Long: `Write the customer and product dimensions and the sales fact held in the store
to CSV files in a local directory, optionally uploading them to S3.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		return runExport(ctx, cmd.Flags())
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().SortFlags = false
	addPipelineFlags(exportCmd)
	switches.addFlag(exportCmd, &pipeFlags.exportDir, "export-dir", "", false, " (defaults to a temp directory)")
	switches.addFlag(exportCmd, &pipeFlags.exportS3, "export-s3", "", false, "")
	switches.addFlag(exportCmd, &exportCfg.MaxFileRows, "csv-rows", "0", false, "")
	switches.addFlag(exportCmd, &exportCfg.UseGzip, "gzip", "", false, "")
}

func runExport(ctx context.Context, f *pflag.FlagSet) error {
	p, err := loadPipeline(f)
	if err != nil {
		return err
	}
	exportCfg.Pipeline = p
	exportCfg.Dir = p.ExportDir
	exportCfg.S3URL = p.ExportS3
	exportCfg.StackDumpOnPanic = stackDumpOnPanic
	return actions.RunExport(ctx, &exportCfg)
}
