package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <tx-hash>",
	Short: "Build the node/edge graph for a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closer, err := buildPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()

		details, g, err := p.Graph(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(map[string]interface{}{
			"transaction": details,
			"graph":       g,
		}, "", "  ")
		if err != nil {
			return errors.Wrap(err, "marshaling graph")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
