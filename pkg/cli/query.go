package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLocateCmd(v *viper.Viper) *cobra.Command {
	var mf manifestFlags
	cmd := &cobra.Command{
		Use:   "locate LABEL...",
		Short: "Print the subset holding each leaf",
		Args:  argsAtLeast(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, run, err := openRun(cmd.Context(), v, &mf)
			if err != nil {
				return err
			}
			defer m.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, label := range args {
				i, err := m.Locate(cmd.Context(), run, label)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\n", label, i)
			}
			return tw.Flush()
		},
	}
	addManifestFlags(cmd, v, &mf)
	return cmd
}

func newRunsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs recorded in a manifest, newest first",
		Args:  argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openManifest(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer m.Close()

			runs, err := m.Runs(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tSTRATEGY\tMAX_SIZE\tLEAVES\tSUBSETS\tOUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Strategy, r.MaxSize, r.Leaves, r.Subsets, r.OutputDir)
			}
			return tw.Flush()
		},
	}
	addManifestFlags(cmd, v, nil)
	return cmd
}
