package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// set via -ldflags "-X github.com/dotandev/sorograph/internal/cmd.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the sorograph version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sorograph %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
