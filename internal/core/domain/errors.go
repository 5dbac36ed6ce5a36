package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// Grammar errors.

	// ErrInvalidScheme indicates the prefix before the first ':' of a
	// flake reference is not a recognised scheme.
	ErrInvalidScheme = errors.New("invalid scheme")

	// ErrInvalidAuthority indicates the scheme-specific body could not be
	// split into its required parts (e.g. github: needs owner/repo).
	ErrInvalidAuthority = errors.New("invalid authority")

	// ErrMalformedQuery indicates a query parameter could not be decoded
	// as a key=value pair.
	ErrMalformedQuery = errors.New("malformed query")

	// Document errors.

	// ErrMalformedManifest indicates the inputs section could not be
	// located or contains unparseable attribute syntax.
	ErrMalformedManifest = errors.New("malformed manifest")

	// ErrDuplicateInput indicates an input with that id already exists.
	ErrDuplicateInput = errors.New("input already exists")

	// ErrInputNotFound indicates no input with the requested id exists.
	ErrInputNotFound = errors.New("input not found")

	// ErrAmbiguousID indicates no id was given and none could be
	// inferred from the flake reference.
	ErrAmbiguousID = errors.New("could not infer id")

	// Change errors.

	// ErrNothingToUnpin indicates the input has no ref or rev set.
	ErrNothingToUnpin = errors.New("nothing to unpin")

	// ErrUnknownParent indicates a follows parent path whose root id
	// does not exist in the manifest.
	ErrUnknownParent = errors.New("unknown parent input")

	// Toggle errors.

	// ErrNoToggleableInputs indicates no input has both an active and a
	// commented version group.
	ErrNoToggleableInputs = errors.New("no toggleable inputs")

	// ErrMultipleToggleableInputs indicates more than one input is
	// toggleable and no id was given.
	ErrMultipleToggleableInputs = errors.New("multiple toggleable inputs")

	// ErrNoToggleableVersions indicates the given id has no commented
	// counterpart to swap in.
	ErrNoToggleableVersions = errors.New("no toggleable versions")

	// ErrSelectionRequired indicates more than one candidate exists and
	// no interactive prompter is available to choose between them.
	ErrSelectionRequired = errors.New("selection required")

	// Reconciliation errors.

	// ErrCycleDetected indicates a follows edge would create, or the
	// lock file already contains, a follows cycle.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrDanglingReference indicates a lock child edge points to a node
	// id that does not exist.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrMalformedLock indicates the lock file could not be decoded.
	ErrMalformedLock = errors.New("malformed lock file")

	// ErrNoLockFile indicates an operation needs flake.lock and none
	// was found next to the manifest.
	ErrNoLockFile = errors.New("no lock file")

	// Environment errors.

	// ErrLockRegeneration indicates the external lock tool failed.
	ErrLockRegeneration = errors.New("lock regeneration failed")
)

// AmbiguousError wraps one of the ambiguity sentinels together with the
// offending id and the full list of valid alternatives, so user-facing
// failures can name what the caller may pick instead.
type AmbiguousError struct {
	Err          error
	ID           string
	Alternatives []string
}

func (e *AmbiguousError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.ID != "" {
		fmt.Fprintf(&b, " for %q", e.ID)
	}
	if len(e.Alternatives) > 0 {
		fmt.Fprintf(&b, ": candidates are %s", strings.Join(e.Alternatives, ", "))
	}
	return b.String()
}

func (e *AmbiguousError) Unwrap() error { return e.Err }

// NetworkError surfaces a failed forge query with enough context to let
// the caller retry manually. Transient errors (connection resets, 5xx)
// are retried by the adapter before one of these is returned.
type NetworkError struct {
	Transient bool
	Input     string
	Remote    string
	Err       error
}

func (e *NetworkError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s network error querying %s for input %q: %v", kind, e.Remote, e.Input, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient network failure.
func IsTransient(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Transient
}
