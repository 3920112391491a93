package cmd

import (
	"fmt"
	"sort"

	"github.com/relloyd/starpipe/actions"
	"github.com/relloyd/starpipe/config"
	"github.com/spf13/cobra"
)

var defaultAddCfg = actions.DefaultAddConfig{}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure default flag values",
	Long: fmt.Sprintf(`Configure default parameters where:

- Default flag values are stored in file %q
- Keys match flag names and pipeline file keys, e.g. store, log-level or export-dir
- Pipeline file and SP_* environment variables take priority over the defaults
`, config.Main.FullPath),
}

var defaultCmd = &cobra.Command{
	Use:     "defaults",
	Aliases: []string{"default"},
	Short:   "Configure default values for commands",
}

var defaultSetCmd = &cobra.Command{
	Use:     "set <key> <value>",
	Aliases: []string{"add"},
	Short:   "Add or set a default flag value",
	Example: "  sp config defaults set store sqlite:~/starpipe.db",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaultAddCfg.ConfigFile = config.Main
		defaultAddCfg.Key = args[0]
		defaultAddCfg.Value = args[1]
		defaultAddCfg.KnownKeys = defaultKeys()
		defaultAddCfg.Out = cmd.OutOrStdout()
		return actions.RunDefaultAdd(&defaultAddCfg)
	},
}

var defaultUnsetCmd = &cobra.Command{
	Use:     "unset <key>",
	Aliases: []string{"rm", "remove", "delete"},
	Short:   "Remove a default flag value",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return actions.RunDefaultRemove(&actions.DefaultRemoveConfig{ConfigFile: config.Main, Key: args[0], Out: cmd.OutOrStdout()})
	},
}

var defaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all default flag values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return actions.RunDefaultList(&actions.DefaultListConfig{ConfigFile: config.Main, Out: cmd.OutOrStdout()})
	},
}

// defaultKeys returns the keys that take effect when stored as defaults: every flag plus the pipeline settings.
func defaultKeys() []string {
	seen := make(map[string]bool)
	for _, k := range config.PipelineKeys() {
		seen[k] = true
	}
	for k := range switches {
		if k != "mock" {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(defaultCmd)
	defaultCmd.AddCommand(defaultSetCmd, defaultUnsetCmd, defaultListCmd)
	defaultSetCmd.Flags().BoolVarP(&defaultAddCfg.Force, "force", "f", false, "Overwrite existing values")
}
