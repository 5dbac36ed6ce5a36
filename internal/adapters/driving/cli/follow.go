package cli

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/logger"
)

var (
	followApply bool
	followWalk  string
)

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Reconcile and manage follows bindings",
	Long: `Compares the manifest's follows bindings with the lock graph and
plans the bindings needed to make nested dependencies track the
top-level inputs. The plan is printed as a dry run, --apply writes it.

With --walk the reconciliation runs over every flake found below the
given directory.`,
	Args: cobra.NoArgs,
	RunE: runFollowReconcile,
}

var followAddCmd = &cobra.Command{
	Use:   "add <id> <from> <to>",
	Short: "Add a follows binding to an input",
	Long: `Wires inputs.<id>.inputs.<from> to follow the top-level input
<to>. The target may be a slash-separated path into another input.`,
	Args:              cobra.ExactArgs(3),
	ValidArgsFunction: completeInputIDs,
	RunE:              runFollowAdd,
}

var followRemoveCmd = &cobra.Command{
	Use:               "remove <id> <from>",
	Short:             "Remove a follows binding from an input",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeInputIDs,
	RunE:              runFollowRemove,
}

func init() {
	followCmd.Flags().BoolVar(&followApply, "apply", false,
		"write the planned bindings instead of printing them")
	followCmd.Flags().StringVar(&followWalk, "walk", "",
		"reconcile every flake below this directory")
	followCmd.AddCommand(followAddCmd)
	followCmd.AddCommand(followRemoveCmd)
	rootCmd.AddCommand(followCmd)
}

func runFollowReconcile(cmd *cobra.Command, _ []string) error {
	if followWalk != "" {
		return walkReconcile(cmd, followWalk)
	}
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()
	return reconcileSession(cmd, s)
}

func reconcileSession(cmd *cobra.Command, s *session) error {
	plan, text, err := s.editor.ReconcileFollows(context.Background(), followApply)
	if err != nil {
		return err
	}
	printPlan(cmd, plan)
	if !followApply {
		return nil
	}
	return s.persist(cmd, text)
}

// walkReconcile reconciles every flake below dir. Each flake gets a
// unit id so its results and warnings stay attributable in aggregated
// output; failures in one project do not stop the walk.
func walkReconcile(cmd *cobra.Command, dir string) error {
	var manifests []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == manifestName {
			manifests = append(manifests, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(manifests) == 0 {
		return fmt.Errorf("no %s found below %s", manifestName, dir)
	}

	failed := 0
	for _, path := range manifests {
		unit := uuid.NewString()[:8]
		cmd.Printf("[%s] %s\n", unit, path)
		s, err := openSessionAt(path)
		if err != nil {
			logger.Warn("[%s] %s: %v", unit, path, err)
			failed++
			continue
		}
		if err := reconcileSession(cmd, s); err != nil {
			logger.Warn("[%s] %s: %v", unit, path, err)
			failed++
		}
		s.close()
	}
	if failed > 0 {
		return fmt.Errorf("reconciliation failed for %d of %d flakes", failed, len(manifests))
	}
	return nil
}

func printPlan(cmd *cobra.Command, plan *domain.FollowsPlan) {
	if plan.Empty() {
		cmd.Println("follows bindings are up to date")
		return
	}
	for _, r := range plan.Removals {
		cmd.Printf("- %s.inputs.%s.follows = %q\n", r.InputID, r.Follow.From, r.Follow.To)
	}
	for _, a := range plan.Additions {
		cmd.Printf("+ %s.inputs.%s.follows = %q\n", a.InputID, a.Follow.From, a.Follow.To)
	}
}

func runFollowAdd(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	change := domain.FollowAddChange{ID: args[0], From: args[1], To: args[2]}
	text, err := s.editor.Apply(context.Background(), change)
	if err != nil {
		return err
	}
	return s.persist(cmd, text)
}

func runFollowRemove(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	change := domain.FollowRemoveChange{ID: args[0], From: args[1]}
	text, err := s.editor.Apply(context.Background(), change)
	if err != nil {
		return err
	}
	return s.persist(cmd, text)
}
