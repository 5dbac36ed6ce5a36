// Package cli exposes the manifest editor as cobra commands. Every
// command loads the flake, runs one operation through the editor
// service, and persists the result.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/logger"
)

var (
	flakePath string
	showDiff  bool
	noLock    bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "flake-edit",
	Short: "Edit flake.nix inputs from the command line",
	Long: `Edit the inputs of a flake.nix manifest while preserving its
formatting and comments.

The manifest is discovered by walking upward from the current
directory unless --flake points somewhere else. After a successful
edit the lock file is regenerated with "nix flake lock" unless
--no-lock is given.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flakePath, "flake", "",
		"path to flake.nix or its directory (default: discovered upward)")
	rootCmd.PersistentFlags().BoolVar(&showDiff, "diff", false,
		"print a unified diff instead of writing the change")
	rootCmd.PersistentFlags().BoolVar(&noLock, "no-lock", false,
		"do not regenerate flake.lock after writing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
