package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the manifest's inputs",
	Long: `Lists the inputs declared in the manifest.

Formats:
  simple    - input ids, one per line
  toplevel  - ids as resolved by the lock file
  detailed  - ids with urls and follows bindings
  json      - machine readable`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listFormat, "format", "simple",
		"output format: simple, toplevel, detailed or json")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	inputs, err := s.editor.Inputs(context.Background())
	if err != nil {
		return err
	}
	domain.SortInputs(inputs)

	switch listFormat {
	case "simple":
		for _, in := range inputs {
			cmd.Println(in.ID)
		}
		return nil
	case "toplevel":
		if s.lock == nil {
			return domain.ErrNoLockFile
		}
		for _, id := range s.lock.TopLevel() {
			cmd.Println(id)
		}
		return nil
	case "detailed":
		return listDetailed(cmd, inputs)
	case "json":
		return listJSON(cmd, inputs)
	default:
		return fmt.Errorf("unknown list format %q", listFormat)
	}
}

func listDetailed(cmd *cobra.Command, inputs []domain.Input) error {
	for _, in := range inputs {
		url := ""
		if in.Ref != nil {
			url = in.Ref.String()
		}
		cmd.Printf("%s - %s\n", in.ID, url)
		for _, f := range in.SortedFollows() {
			cmd.Printf("  %s follows %s\n", f.From, f.To)
		}
	}
	return nil
}

type listEntry struct {
	ID      string            `json:"id"`
	URL     string            `json:"url,omitempty"`
	Flake   *bool             `json:"flake,omitempty"`
	Follows map[string]string `json:"follows,omitempty"`
}

func listJSON(cmd *cobra.Command, inputs []domain.Input) error {
	entries := make([]listEntry, 0, len(inputs))
	for _, in := range inputs {
		entry := listEntry{ID: in.ID, Flake: in.Flake}
		if in.Ref != nil {
			entry.URL = in.Ref.String()
		}
		if len(in.Follows) > 0 {
			entry.Follows = make(map[string]string, len(in.Follows))
			for _, f := range in.Follows {
				entry.Follows[f.From] = f.To
			}
		}
		entries = append(entries, entry)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}
