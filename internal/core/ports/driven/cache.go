package driven

import "time"

// RefCache stores forge refs between runs so shell completion and
// repeated resolution do not hit the network every time.
type RefCache interface {
	// Refs returns the cached refs for a repository, reporting false
	// when the entry is absent or older than maxAge.
	Refs(host, owner, repo string, maxAge time.Duration) ([]string, bool, error)

	// Store replaces the cached refs for a repository.
	Store(host, owner, repo string, refs []string) error

	Close() error
}
