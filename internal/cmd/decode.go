package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dotandev/sorograph/internal/analytics"
	"github.com/dotandev/sorograph/internal/schema"
)

var showStorage bool

var decodeCmd = &cobra.Command{
	Use:   "decode <tx-hash> [tx-hash...]",
	Short: "Decode one or more transactions to JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closer, err := buildPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()

		bar := newBar(len(args))
		var failed int
		for _, hash := range args {
			details, err := p.Decode(cmd.Context(), hash)
			barAdd(bar)
			if err != nil {
				failed++
				log.WithError(err).WithField("hash", hash).Error("decode failed")
				continue
			}
			if err := printDetails(details); err != nil {
				return err
			}
			if showStorage {
				printStorage(details)
			}
		}
		if failed > 0 {
			return errors.Errorf("%d of %d transactions failed to decode", failed, len(args))
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().BoolVar(&showStorage, "storage", false, "print a storage growth report per transaction")
	rootCmd.AddCommand(decodeCmd)
}

// newBar shows progress only for interactive multi-hash runs so piped
// output stays clean JSON.
func newBar(total int) *progressbar.ProgressBar {
	if total < 2 || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("decoding"),
		progressbar.OptionClearOnFinish(),
	)
}

func barAdd(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

func printDetails(details *schema.TransactionDetails) error {
	out, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling transaction details")
	}
	fmt.Println(string(out))
	return nil
}

func printStorage(details *schema.TransactionDetails) {
	var changes []schema.StateChange
	for _, sop := range details.Soroban {
		changes = append(changes, sop.StateChanges...)
	}
	analytics.PrintStorageReport(analytics.BuildStorageReport(changes), details.FeeCharged)
}
