package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lnwallet-oss/nwcclient/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current version of nwc-cli",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("version:", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
