package driving

import (
	"context"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

// Editor is the application surface the CLI drives. Every operation
// works on the manifest text held by the service; persisting the
// result is the caller's concern.
type Editor interface {
	// Inputs lists the inputs declared in the manifest.
	Inputs(ctx context.Context) ([]domain.Input, error)

	// Apply performs one change and returns the updated manifest text.
	Apply(ctx context.Context, change domain.Change) (string, error)

	// Toggle comments or uncomments an input's url statement. With an
	// empty id the single toggleable input is auto-detected, or the
	// user is asked when several qualify.
	Toggle(ctx context.Context, id string) (string, error)

	// ToggleToVersion activates the commented alternative of id whose
	// url matches version, without prompting.
	ToggleToVersion(ctx context.Context, id, version string) (string, error)

	// ReconcileFollows plans the follows bindings needed to make nested
	// dependencies track top-level inputs, and optionally applies them.
	ReconcileFollows(ctx context.Context, apply bool) (*domain.FollowsPlan, string, error)

	// Update moves inputs to newer versions. With an empty ids slice
	// every updatable input is considered. With init, inputs tracking
	// the default branch are moved onto their latest release tag.
	Update(ctx context.Context, ids []string, init bool) ([]domain.UpdateResult, string, error)
}
