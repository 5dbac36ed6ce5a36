package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:   "toggle [id] [version]",
	Short: "Toggle between commented and active url lines",
	Long: `Comments an input's active url statement or uncomments a commented
alternative, so keeping two versions of an input around and switching
between them is a single command.

Without an id the toggleable input is auto-detected. When several
inputs or several commented alternatives qualify, an interactive
picker asks which one to use. A second argument selects the
alternative by url match without prompting.`,
	Args:              cobra.MaximumNArgs(2),
	ValidArgsFunction: completeInputIDs,
	RunE:              runToggle,
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}

func runToggle(cmd *cobra.Command, args []string) error {
	var id, version string
	if len(args) > 0 {
		id = args[0]
	}
	if len(args) > 1 {
		version = args[1]
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ctx := context.Background()
	var text string
	if version != "" {
		text, err = s.editor.ToggleToVersion(ctx, id, version)
	} else {
		text, err = s.editor.Toggle(ctx, id)
	}
	if err != nil {
		return err
	}
	return s.persist(cmd, text)
}
