package driven

import "context"

// Locker regenerates the lock file after the manifest changed.
type Locker interface {
	Relock(ctx context.Context, dir string) error
}
