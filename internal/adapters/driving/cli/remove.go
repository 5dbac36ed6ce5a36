package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an input",
	Long: `Removes an input together with every follows binding other inputs
point at it. Unique id prefixes are accepted.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInputIDs,
	RunE:              runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	text, err := s.editor.Apply(context.Background(), domain.RemoveChange{ID: args[0]})
	if err != nil {
		return err
	}
	return s.persist(cmd, text)
}
