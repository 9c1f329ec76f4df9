package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/yolodet/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		out := cmd.OutOrStdout()

		if short, _ := cmd.Flags().GetBool("short"); short {
			_, err := fmt.Fprintln(out, info.Version)
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		_, _ = fmt.Fprintf(out, "yolodet version %s\n", info.Version)
		_, _ = fmt.Fprintf(out, "Commit: %s\n", info.GitCommit)
		_, _ = fmt.Fprintf(out, "Built: %s\n", info.BuildDate)
		_, _ = fmt.Fprintf(out, "Go: %s %s\n", info.GoVersion, info.Platform)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("short", false, "print only the version number")
	versionCmd.Flags().Bool("json", false, "print as JSON")
}
