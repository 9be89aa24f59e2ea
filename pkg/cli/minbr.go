package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yumyai/treesplit/internal/util"
	"github.com/yumyai/treesplit/pkg/config"
	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/manifest"
)

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

// FormatMinBranch prints a minimum branch length with the shortest
// representation that reads back to the same float64.
func FormatMinBranch(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// manifestFlags are shared by the commands querying a manifest. A nil
// *manifestFlags adds no --run flag.
type manifestFlags struct {
	runID string
}

func addManifestFlags(cmd *cobra.Command, v *viper.Viper, mf *manifestFlags) {
	f := cmd.Flags()
	f.String("manifest", "", "run manifest database (env TREESPLIT_MANIFEST)")
	if mf != nil {
		f.StringVar(&mf.runID, "run", "", "run id (default: latest run)")
	}
	cmd.PreRunE = bindFlags(v, f, map[string]string{"manifest": config.KeyManifest})
}

func openManifest(ctx context.Context, v *viper.Viper) (*manifest.Manifest, error) {
	path := v.GetString(config.KeyManifest)
	if path == "" || path == config.ManifestNone {
		return nil, errs.NewConfigurationError(config.KeyManifest, "a manifest path is required")
	}
	if !util.FileExists(path) {
		return nil, &errs.IOError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	m, err := manifest.Open(ctx, path)
	if err != nil {
		return nil, &errs.IOError{Op: "open", Path: path, Err: err}
	}
	return m, nil
}

// openRun opens the configured manifest and resolves the selected run.
func openRun(ctx context.Context, v *viper.Viper, mf *manifestFlags) (*manifest.Manifest, string, error) {
	m, err := openManifest(ctx, v)
	if err != nil {
		return nil, "", err
	}
	run, err := m.ResolveRun(ctx, mf.runID)
	if err != nil {
		m.Close()
		return nil, "", err
	}
	return m, run, nil
}

func newMinbrCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minbr",
		Short: "Store or read the minimum branch length estimated for a subset",
		Long: `The minimum branch length of each subset is stored in the run manifest as
an IEEE double and printed with full precision, so it can be passed to the
delimitation step without rounding.`,
	}
	cmd.AddCommand(newMinbrSetCmd(v), newMinbrGetCmd(v))
	return cmd
}

func newMinbrSetCmd(v *viper.Viper) *cobra.Command {
	var (
		mf     manifestFlags
		subset int
	)
	cmd := &cobra.Command{
		Use:   "set VALUE",
		Short: "Record the minimum branch length of a subset",
		Args:  argsBetween(1, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
				return errs.NewConfigurationError("value", "%q is not a non-negative number", args[0])
			}
			if subset < 1 {
				return errs.NewConfigurationError("subset", "--subset is required")
			}
			m, run, err := openRun(cmd.Context(), v, &mf)
			if err != nil {
				return err
			}
			defer m.Close()
			return m.SetMinBranch(cmd.Context(), run, subset, value)
		},
	}
	addManifestFlags(cmd, v, &mf)
	cmd.Flags().IntVar(&subset, "subset", 0, "subset index (1-based)")
	return cmd
}

func newMinbrGetCmd(v *viper.Viper) *cobra.Command {
	var (
		mf     manifestFlags
		subset int
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the minimum branch length of a subset",
		Args:  argsBetween(0, 0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if subset < 1 {
				return errs.NewConfigurationError("subset", "--subset is required")
			}
			m, run, err := openRun(cmd.Context(), v, &mf)
			if err != nil {
				return err
			}
			defer m.Close()
			value, err := m.MinBranch(cmd.Context(), run, subset)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), FormatMinBranch(value))
			return nil
		},
	}
	addManifestFlags(cmd, v, &mf)
	cmd.Flags().IntVar(&subset, "subset", 0, "subset index (1-based)")
	return cmd
}
