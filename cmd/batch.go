package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/vies-crawler/internal/scrape"
)

// newBatchCmd validates line-delimited numbers from a file or stdin through
// the registry's batch API.
func newBatchCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [FILE]",
		Short: "Validate VAT numbers in batches",
		Long: `Reads line-delimited VAT numbers from FILE, or stdin when FILE is
omitted or -, submits them in batches and polls each batch job until its
results are available.`,
		Example: "  vies batch numbers.txt --size 50 -f csv -o results.csv",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			numbers, err := readNumbers(cmd, args)
			if err != nil {
				return err
			}
			return runScrape(cmd, opts, numbers, func(size int) int { return size })
		},
	}
	cmd.Flags().Int("size", 99, "numbers per batch job")
	cmd.Flags().Duration("poll-interval", 0, "wait between batch status checks (default from config, 5s)")
	cmd.Flags().Duration("poll-timeout", 0, "give up on a batch job after this long (default from config, 10m)")
	for flag, key := range map[string]string{
		"size":          "batch.size",
		"poll-interval": "batch.poll_interval",
		"poll-timeout":  "batch.poll_timeout",
	} {
		_ = opts.v.BindPFlag(key, cmd.Flags().Lookup(flag)) //nolint:errcheck // registered above
	}
	return cmd
}

func readNumbers(cmd *cobra.Command, args []string) ([]string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only
		r = f
	}
	return scrape.ReadLines(r)
}
