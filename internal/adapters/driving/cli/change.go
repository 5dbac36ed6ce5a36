package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

var changeCmd = &cobra.Command{
	Use:   "change <id> <uri>",
	Short: "Change the reference of an input",
	Long: `Replaces the url of an existing input while keeping its flake
attribute and follows bindings in place.`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeInputIDs,
	RunE:              runChange,
}

func init() {
	rootCmd.AddCommand(changeCmd)
}

func runChange(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	change := domain.URIChange{ID: args[0], URI: args[1]}
	text, err := s.editor.Apply(context.Background(), change)
	if err != nil {
		return err
	}
	s.rememberPair(change.ID, change.URI)
	return s.persist(cmd, text)
}
