package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:    "complete <mode>",
	Short:  "Print completion candidates",
	Hidden: true,
	Long: `Prints completion candidates for shell integrations.

Modes:
  add     - previously used id/uri pairs
  change  - declared input ids
  follow  - nested input paths from the lock file`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"add", "change", "follow"},
	RunE:      runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "add":
		return completeAdd(cmd)
	case "change":
		return completeChange(cmd)
	case "follow":
		return completeFollow(cmd)
	default:
		return fmt.Errorf("unknown completion mode %q", args[0])
	}
}

// completeAdd prints remembered id/uri pairs without touching the
// manifest, so it works outside a flake directory too.
func completeAdd(cmd *cobra.Command) error {
	store := openCache()
	if store == nil {
		return nil
	}
	defer store.Close()

	pairs, err := store.Pairs()
	if err != nil {
		return err
	}
	for _, p := range pairs {
		cmd.Printf("%s\t%s\n", p.ID, p.URI)
	}
	return nil
}

func completeChange(cmd *cobra.Command) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	inputs, err := s.editor.Inputs(context.Background())
	if err != nil {
		return err
	}
	for _, in := range inputs {
		cmd.Println(in.ID)
	}
	return nil
}

// completeFollow prints dotted paths to nested inputs, the candidates
// for new follows bindings.
func completeFollow(cmd *cobra.Command) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	if s.lock == nil {
		return nil
	}
	var paths []string
	for _, id := range s.lock.TopLevel() {
		nested, err := s.lock.NestedInputs(id)
		if err != nil {
			continue
		}
		for name := range nested {
			paths = append(paths, id+"."+name)
		}
	}
	sort.Strings(paths)
	for _, p := range paths {
		cmd.Println(p)
	}
	return nil
}

// completeInputIDs completes id arguments with the manifest's input
// ids, falling back to no suggestions when the flake cannot be
// loaded.
func completeInputIDs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	s, err := openSession()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer s.close()

	inputs, err := s.editor.Inputs(context.Background())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ID)
	}
	sort.Strings(ids)
	return ids, cobra.ShellCompDirectiveNoFileComp
}
