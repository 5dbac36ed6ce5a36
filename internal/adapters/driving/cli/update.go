package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var updateInit bool

var updateCmd = &cobra.Command{
	Use:   "update [id...]",
	Short: "Update inputs to their latest version",
	Long: `Moves inputs tracking a release channel to the newest channel and
inputs tracking a version tag to the newest stable tag. Without
arguments every input is considered, inputs that cannot be updated
are reported with the reason.

With --init, inputs tracking their default branch are put on the
latest release tag instead of being skipped.`,
	ValidArgsFunction: completeInputIDs,
	RunE:              runUpdate,
}

func init() {
	updateCmd.Flags().BoolVar(&updateInit, "init", false,
		"give unversioned inputs their first version")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	results, text, err := s.editor.Update(context.Background(), args, updateInit)
	if err != nil {
		return err
	}
	for _, r := range results {
		switch {
		case r.Changed() && r.From == "":
			cmd.Printf("%s: initialized to %s\n", r.ID, r.To)
		case r.Changed():
			cmd.Printf("%s: %s -> %s\n", r.ID, r.From, r.To)
		default:
			cmd.Printf("%s: skipped (%s)\n", r.ID, r.Reason)
		}
	}
	return s.persist(cmd, text)
}
