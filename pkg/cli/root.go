// Package cli is the treesplit command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yumyai/treesplit/logger"
	"github.com/yumyai/treesplit/pkg/config"
	"github.com/yumyai/treesplit/pkg/errs"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "0.1.0"

// NewRootCmd builds the command tree. Every call returns independent
// commands and viper state.
func NewRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:   "treesplit",
		Short: "Split a large phylogeny and its alignment into bounded subsets",
		Long: `treesplit cuts a rooted phylogenetic tree and the matching multiple
sequence alignment into numbered subsets of at most M leaves, written as
subset_<i>.tre / subset_<i>.fasta pairs for independent downstream analysis.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()
			return initLogging(v)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &errs.ConfigurationError{Msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolP("verbose", "v", false, "debug logging, same as --log-level debug")
	bindFlag(v, config.KeyLogLevel, pf.Lookup("log-level"))
	bindFlag(v, "verbose", pf.Lookup("verbose"))

	root.AddCommand(
		newSplitCmd(v),
		newMinbrCmd(v),
		newLocateCmd(v),
		newRunsCmd(v),
		newNamesCmd(),
		newVersionCmd(),
	)
	return root
}

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", f.Name, err))
	}
}

// bindFlags binds flags to keys when the command runs, so subcommands may
// share a key without overriding each other.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) func(*cobra.Command, []string) error {
	return func(*cobra.Command, []string) error {
		for name, key := range keys {
			bindFlag(v, key, fs.Lookup(name))
		}
		return nil
	}
}

func initLogging(v *viper.Viper) error {
	level, err := logger.ParseLevel(v.GetString(config.KeyLogLevel))
	if err != nil {
		return errs.NewConfigurationError(config.KeyLogLevel, "%v", err)
	}
	if v.GetBool("verbose") {
		level = zapcore.DebugLevel
	}
	return logger.InitLogger(level)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := logger.InitLogger(zapcore.InfoLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return errs.ExitErr
	}
	defer logger.Sync() // Make sure that the buffered is flushed.

	err := NewRootCmd().Execute()
	code := errs.ExitCode(err)
	if err != nil {
		logger.Error("treesplit failed", zap.Error(err), zap.Int("exit_code", code))
	}
	return code
}

// argsBetween checks the positional argument count, reporting a
// configuration error.
func argsBetween(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < lo || len(args) > hi {
			if lo == hi {
				return errs.NewConfigurationError("args", "%s accepts %d arg(s), received %d", cmd.CommandPath(), lo, len(args))
			}
			return errs.NewConfigurationError("args", "%s accepts %d to %d args, received %d", cmd.CommandPath(), lo, hi, len(args))
		}
		return nil
	}
}

func argsAtLeast(lo int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < lo {
			return errs.NewConfigurationError("args", "%s requires at least %d arg(s), received %d", cmd.CommandPath(), lo, len(args))
		}
		return nil
	}
}
