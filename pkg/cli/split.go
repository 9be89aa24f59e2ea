package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yumyai/treesplit/pkg/config"
	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/pipeline"
)

func newSplitCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "split [TREE ALIGNMENT MAX_SIZE OUT_DIR]",
		Short: "Decompose a tree and its alignment into numbered subsets",
		Long: `Split reads a Newick tree and a FASTA alignment and writes, for every
subset i = 1..N, the pruned tree subset_<i>.tre and the matching sequences
subset_<i>.fasta into the output directory. No subset has more than
--max-size leaves.

Strategies:
  pack   fewest subsets, cutting the tree as close to the root as possible (default)
  clade  whole clades, sibling clades packed left to right

The inputs may also be given positionally, in the order TREE ALIGNMENT
MAX_SIZE OUT_DIR.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 4 {
				return errs.NewConfigurationError("args", "split takes 0 or 4 positional args, received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ReadFile(v, configFile); err != nil {
				return err
			}
			if len(args) == 4 {
				v.Set(config.KeyTree, args[0])
				v.Set(config.KeyAlignment, args[1])
				v.Set(config.KeyMaxSize, args[2])
				v.Set(config.KeyOut, args[3])
				if _, err := parsePositiveInt(args[2]); err != nil {
					return errs.NewConfigurationError(config.KeyMaxSize, "%v", err)
				}
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			res, err := pipeline.Split(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SUBSET\tLEAVES\tTREE\tALIGNMENT")
			for _, w := range res.Written {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", w.Index, w.Leaves, w.TreeFile, w.AlignmentFile)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if res.RunID != "" {
				fmt.Fprintf(out, "run %s: %d leaves in %d subsets\n", res.RunID, res.Leaves, len(res.Written))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("tree", "", "input tree (Newick)")
	f.String("alignment", "", "input alignment (FASTA)")
	f.Int("max-size", 0, "maximum number of leaves per subset")
	f.String("out", "", "output directory, created if missing")
	f.String("strategy", "pack", "decomposition strategy: pack or clade")
	f.Bool("allow-extra-sequences", false, "ignore sequences whose label is not a tree leaf")
	f.Int("line-width", 0, "wrap FASTA sequences at this width (0: one line)")
	f.Bool("force", false, "replace subset files left by an earlier run")
	f.String("manifest", "", `run manifest database (default <out>/manifest.db, "none" to disable)`)
	f.String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	f.StringVarP(&configFile, "config", "c", "", "YAML config file with the same keys as the flags")

	cmd.PreRunE = bindFlags(v, f, map[string]string{
		"tree":                  config.KeyTree,
		"alignment":             config.KeyAlignment,
		"max-size":              config.KeyMaxSize,
		"out":                   config.KeyOut,
		"strategy":              config.KeyStrategy,
		"allow-extra-sequences": config.KeyAllowExtraSequences,
		"line-width":            config.KeyLineWidth,
		"force":                 config.KeyForce,
		"manifest":              config.KeyManifest,
		"metrics-file":          config.KeyMetricsFile,
	})
	return cmd
}
