package main

import (
	"fmt"
	"os"
	"strings"

	"emperror.dev/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/glintd/glint/internal/config"
	"github.com/glintd/glint/internal/git"
)

var rootFlags struct {
	Debug             bool
	Directory         string
	Threads           int
	DirtyMaxIndexSize int
}

var RootCmd = &cobra.Command{
	Use:   "glint",
	Short: "fast git status for shell prompts",

	// Don't automatically print errors or usage information (we handle
	// that ourselves). Cobra still prints usage if you return cmd.Usage()
	// from RunE.
	SilenceErrors: true,
	SilenceUsage:  true,

	// Don't show "completion" command in help menu
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},

	// Run setup before invoking any child commands.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		didLoadConfig, err := config.Load(nil)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration")
		}

		if rootFlags.Debug {
			logrus.SetLevel(logrus.DebugLevel)
		} else if level, err := logrus.ParseLevel(config.Glint.LogLevel); err == nil {
			logrus.SetLevel(level)
		}
		logrus.SetOutput(os.Stderr)

		if didLoadConfig {
			logrus.Debug("loaded configuration")
		} else {
			logrus.Debug("no configuration found")
		}
		if cmd.Flags().Changed("threads") {
			config.Glint.NumThreads = rootFlags.Threads
		}
		if cmd.Flags().Changed("dirty-max-index-size") {
			config.Glint.DirtyMaxIndexSize = rootFlags.DirtyMaxIndexSize
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(
		&rootFlags.Debug, "debug", false,
		"enable verbose debug logging",
	)
	RootCmd.PersistentFlags().StringVarP(
		&rootFlags.Directory, "repo", "C", "",
		"directory to use for git repository",
	)
	RootCmd.PersistentFlags().IntVar(
		&rootFlags.Threads, "threads", 0,
		"worker pool size (0 = based on core count)",
	)
	RootCmd.PersistentFlags().IntVar(
		&rootFlags.DirtyMaxIndexSize, "dirty-max-index-size", -1,
		"skip dirty/untracked scans above this many index entries (-1 = no limit)",
	)
	RootCmd.AddCommand(
		queryCmd,
		serveCmd,
		versionCmd,
	)
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		// In debug mode, show more detailed information about the error
		// (including the stack trace if available).
		if rootFlags.Debug {
			stackTrace := fmt.Sprintf("%+v", err)
			_, _ = fmt.Fprintf(os.Stderr, "error: %s\n%s\n", err, indent(stackTrace, "\t"))
		} else {
			_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}

		os.Exit(1)
	}
}

func indent(s string, prefix string) string {
	// why is this not in the stdlib????
	return prefix + strings.Replace(s, "\n", "\n"+prefix, -1)
}

func getRepo() (*git.Repo, error) {
	dir := rootFlags.Directory
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to determine working directory")
		}
	}
	repo, err := git.OpenRepo(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open git repo")
	}
	return repo, nil
}
