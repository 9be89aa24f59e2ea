package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/treesplit/internal/util"
	"github.com/yumyai/treesplit/logger"
	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/taxon"
)

func newNamesCmd() *cobra.Command {
	var (
		in     string
		out    string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Clean species names in a sample metadata table",
		Long: `Names rewrites the species column of a CSV metadata table to canonical
binomials. Specimen codes and other decorations move to species_suffix,
trinomials go to subspecies. Values such as "sp.", "sp._13YB", "aff." or
"cf." are not species names: the species cell is cleared and the original
text kept as suffix.`,
		Args: argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(in)
			if err != nil {
				return &errs.IOError{Op: "open", Path: in, Err: err}
			}
			defer f.Close()

			var rep taxon.Report
			if dryRun {
				rep, err = taxon.CleanCSV(f, nil, true)
			} else {
				err = util.WriteAtomic(out, func(w io.Writer) error {
					var cerr error
					rep, cerr = taxon.CleanCSV(f, w, false)
					return cerr
				})
			}
			if err != nil {
				return errs.WithSource(err, in)
			}

			logReport(rep)
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "records: %d, empty: %d, invalid: %d, with suffix: %d, trinomials: %d, clean: %d\n",
				rep.Total, rep.Empty, rep.Invalid, rep.WithSuffix, rep.Trinomials, rep.Clean)
			if !dryRun {
				fmt.Fprintf(w, "modified: %d, written to %s\n", rep.Modified, out)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in, "in", "metadata.csv", "input metadata table")
	f.StringVar(&out, "out", "metadata_cleaned.csv", "cleaned output table")
	f.BoolVar(&dryRun, "dry-run", false, "only report what would change")
	return cmd
}

func logReport(rep taxon.Report) {
	for _, ex := range rep.InvalidExamples {
		logger.Debug("Invalid species name", zap.String("species", ex))
	}
	for _, ex := range rep.SuffixExamples {
		logger.Debug("Suffix extracted",
			zap.String("species", ex.Original),
			zap.String("binomial", ex.Name.Binomial),
			zap.String("suffix", ex.Name.Suffix),
		)
	}
	for _, ex := range rep.TrinomialExamples {
		logger.Debug("Trinomial",
			zap.String("species", ex.Original),
			zap.String("trinomial", ex.Name.Trinomial),
		)
	}
	logger.Info("Species names analysed",
		zap.Int("total", rep.Total),
		zap.Int("empty", rep.Empty),
		zap.Int("invalid", rep.Invalid),
		zap.Int("with_suffix", rep.WithSuffix),
		zap.Int("trinomials", rep.Trinomials),
		zap.Int("clean", rep.Clean),
		zap.Int("modified", rep.Modified),
		zap.Int("invalidated", rep.Invalidated),
	)
}
