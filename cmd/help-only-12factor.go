package cmd

import (
	"fmt"

	"github.com/relloyd/starpipe/constants"
	"github.com/spf13/cobra"
)

var twelveFactorCmd = &cobra.Command{
	Use:   "12f",
	Short: `View help notes for running in Twelve-Factor mode`,
	Long: fmt.Sprintf(`
Starpipe can be controlled by environment variables and is a good fit to run
in containers or AWS Lambda.

To enable Twelve-Factor mode, set environment variable %[1]s_12FACTOR_MODE=1
(or "lambda" to run as an AWS Lambda handler). To supply flags documented by
the regular command-line usage, set an equivalent environment variable using
the following convention:

<%[1]s>_<flag long-name in upper case>

Raw source locations are set per entity using <%[1]s>_<ENTITY>_SOURCE, or all
at once using %[1]s_SOURCES in the form accepted by --sources. An S3 location
ending in "/" loads every object below that prefix.
For example, this will conform files from S3 into a SQLite store:

export %[1]s_12FACTOR_MODE=1
export %[1]s_COMMAND=run
export %[1]s_LOG_LEVEL=info
export %[1]s_STORE=sqlite:/var/lib/starpipe/warehouse.db
export %[1]s_REGION=eu-west-2
export %[1]s_CUSTOMERS_SOURCE=s3://raw.example.com/crm/cust_info.csv
export %[1]s_PRODUCTS_SOURCE=s3://raw.example.com/crm/prd_info.csv
export %[1]s_SALES_SOURCE=s3://raw.example.com/crm/sales_details.csv
export %[1]s_DEMOGRAPHICS_SOURCE=s3://raw.example.com/erp/CUST_AZ12.csv
export %[1]s_LOCATIONS_SOURCE=s3://raw.example.com/erp/LOC_A101.csv
export %[1]s_CATEGORIES_SOURCE=s3://raw.example.com/erp/PX_CAT_G1V2.csv

Then execute the CLI tool without any arguments or flags to kick off the run.
Supported commands are run, check, export and serve.
`, constants.EnvVarPrefix),
}

func init() {
	rootCmd.AddCommand(twelveFactorCmd)
}
