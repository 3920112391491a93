package cmd

import (
	"net"
	"strconv"

	"github.com/relloyd/starpipe/actions"
	c "github.com/relloyd/starpipe/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a web service to launch runs and quality checks",
	Long: `Start a web service that launches pipeline runs and quality checks, where:

POST /runs                  starts a run (one at a time)
GET  /runs                  lists runs
GET  /runs/{runId}/status   shows a run report
GET  /runs/{runId}/stats    shows stage statistics
POST /runs/{runId}/stop     cancels a run
GET  /checks                lists quality checks
GET  /checks/{checkName}    runs a check against the store
GET  /health                reports the server is up`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Flags())
	},
}

var serveConfig = actions.WebServerConfig{
	Scheme: "http",
	Addr:   net.IP{0, 0, 0, 0},
	Port:   c.DefaultServerPort,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().IPVarP(&serveConfig.Addr, "address", "a", net.IP{0, 0, 0, 0}, "Address to listen on")
	switches.addFlag(serveCmd, &serveConfig.Port, "port", strconv.Itoa(c.DefaultServerPort), false, "")
	switches.addFlag(serveCmd, &serveConfig.MaxConns, "max-conns", strconv.Itoa(c.DefaultServerMaxConns), false, "")
	addPipelineFlags(serveCmd)
	addRunFlags(serveCmd)
}

func runServe(f *pflag.FlagSet) error {
	p, err := loadPipeline(f)
	if err != nil {
		return err
	}
	serveConfig.Pipeline = p
	serveConfig.StackDumpOnPanic = stackDumpOnPanic
	return actions.RunWebServer(&serveConfig)
}
