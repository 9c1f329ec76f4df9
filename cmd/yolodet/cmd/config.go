package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/yolodet/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage yolodet configuration",
	Long: `Create and inspect configuration files.

Settings are resolved from (highest first): command-line flags, YOLODET_*
environment variables, the config file, and built-in defaults.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write the default configuration as YAML. The path defaults to ./yolodet.yaml.

Examples:
  yolodet config init
  yolodet config init ~/.config/yolodet/yolodet.yaml --force`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if err := config.GenerateDefaultConfigFile(path, force); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after merging defaults, the config file,
environment variables and flags.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		}
		return config.WriteConfig(cmd.OutOrStdout(), *cfg)
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show where configuration is loaded from",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		GetConfigLoader().PrintConfigInfo(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathsCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
	configShowCmd.Flags().Bool("json", false, "print JSON instead of YAML")
}
