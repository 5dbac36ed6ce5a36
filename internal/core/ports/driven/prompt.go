package driven

import "context"

// Prompter asks the user to pick one of several options when an
// operation is ambiguous. Non-interactive implementations fail with
// domain.ErrSelectionRequired instead of guessing.
type Prompter interface {
	Select(ctx context.Context, title string, options []string) (string, error)
}
