package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var (
	// Default values may be set at compile time.
	version          = "0.1.0"
	buildDate        = "2026-01-01T00:00+0000"
	stackDumpOnPanic bool
)

var rootCmd = &cobra.Command{
	Use: "sp",
	Long: `
Starpipe conforms raw CRM and ERP extracts into a star schema.

Raw CSV files (local or in S3) are loaded unchanged, cleansed into typed tables,
then joined into customer and product dimensions and a sales fact. Every run
finishes with data quality checks. Layers are written to an in-memory, SQLite or
PostgreSQL store so they can be checked and exported again later.
Start an HTTP server to launch runs and checks over a RESTful API.`,
	SilenceUsage: true,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.PersistentFlags().BoolVar(&stackDumpOnPanic, "print-stack", false, "Print a stack dump if there is a panic")
	_ = rootCmd.PersistentFlags().MarkHidden("print-stack")
}

// signalContext returns a context that is cancelled on SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if twelveFactorMode { // if we are running based on environment variables...
		if lambdaMode { // if we should handle lambda execution...
			lambda.Start(func(ctx context.Context) error { return execute12FactorMode(ctx, twelveFactorActions) })
			return
		}
		ctx, cancel := signalContext()
		err := execute12FactorMode(ctx, twelveFactorActions)
		cancel()
		if err != nil {
			// execute12FactorMode prints the error.
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil { // if we're using CLI args and flags via Cobra...
		// Execute() prints the error.
		os.Exit(1)
	}
}
