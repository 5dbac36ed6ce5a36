package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

var (
	addNoFlake   bool
	addOverwrite bool
	addFollows   []string
)

var addCmd = &cobra.Command{
	Use:   "add [id] <uri>",
	Short: "Add a new input",
	Long: `Adds an input to the manifest. With a single argument the id is
inferred from the reference, so

  flake-edit add github:NixOS/nixpkgs/nixos-24.11

declares an input named nixpkgs.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&addNoFlake, "no-flake", false,
		"mark the input as not being a flake")
	addCmd.Flags().BoolVar(&addOverwrite, "overwrite", false,
		"replace an existing declaration of the same id")
	addCmd.Flags().StringArrayVar(&addFollows, "follows", nil,
		"follows binding as from=to, repeatable")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	change := domain.AddChange{URI: args[len(args)-1], Overwrite: addOverwrite}
	if len(args) == 2 {
		change.ID = args[0]
	}
	if addNoFlake {
		flake := false
		change.Flake = &flake
	}
	for _, binding := range addFollows {
		from, to, ok := strings.Cut(binding, "=")
		if !ok || from == "" || to == "" {
			return fmt.Errorf("malformed --follows value %q, expected from=to", binding)
		}
		change.Follows = append(change.Follows, domain.Follow{From: from, To: to})
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
	id := change.ID
	if id == "" {
		if ref, err := domain.ParseRef(change.URI); err == nil {
			id = ref.InferID()
		}
	}
	s.rememberPair(id, change.URI)
	return s.persist(cmd, text)
}
