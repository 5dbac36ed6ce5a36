package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

var pinCmd = &cobra.Command{
	Use:   "pin <id> [ref-or-rev]",
	Short: "Pin an input to a ref or revision",
	Long: `Pins an input. Without an explicit ref or revision the revision
currently recorded in flake.lock is used, so the input stays where it
is even when upstream moves.`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: completeInputIDs,
	RunE:              runPin,
}

var unpinCmd = &cobra.Command{
	Use:   "unpin <id>",
	Short: "Unpin an input",
	Long:  `Removes the pinned ref or revision so the input tracks upstream's default branch again.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeInputIDs,
	RunE:              runUnpin,
}

func init() {
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
}

func runPin(cmd *cobra.Command, args []string) error {
	change := domain.PinChange{ID: args[0]}
	if len(args) == 2 {
		change.RefOrRev = args[1]
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	text, err := s.editor.Apply(context.Background(), change)
	if err != nil {
		return err
	}
	return s.persist(cmd, text)
}

func runUnpin(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	text, err := s.editor.Apply(context.Background(), domain.UnpinChange{ID: args[0]})
	if err != nil {
		return err
	}
	return s.persist(cmd, text)
}
