package driven

import "context"

// Forge queries a code hosting service for the refs and revisions of a
// repository. Implementations live in adapters and are free to cache.
type Forge interface {
	// Branches lists branch names of owner/repo.
	Branches(ctx context.Context, owner, repo string) ([]string, error)

	// Tags lists tag names of owner/repo, newest first.
	Tags(ctx context.Context, owner, repo string) ([]string, error)

	// RevOf resolves a branch or tag name to its commit revision.
	// An empty ref resolves the repository's default branch.
	RevOf(ctx context.Context, owner, repo, ref string) (string, error)
}
