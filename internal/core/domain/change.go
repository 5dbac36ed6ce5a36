package domain

// Change is one requested edit to the manifest. The concrete type
// selects the operation, Target names the affected input. A Change is
// a pure description; applying it is the change engine's job.
type Change interface {
	Target() string
	change()
}

// AddChange declares a new input. With Overwrite an existing
// declaration of the same id is replaced instead of rejected.
type AddChange struct {
	ID        string // empty means infer from URI
	URI       string
	Flake     *bool
	Follows   []Follow
	Overwrite bool
}

// RemoveChange drops an input and every follows binding pointing at it.
type RemoveChange struct {
	ID string
}

// URIChange replaces the reference of an existing input.
type URIChange struct {
	ID  string
	URI string
}

// PinChange pins an input to a ref or rev. An empty RefOrRev means
// "the revision currently recorded in the lock file".
type PinChange struct {
	ID       string
	RefOrRev string
}

// UnpinChange removes the pin, tracking upstream's default again.
type UnpinChange struct {
	ID string
}

// FollowAddChange wires inputs.<ID>.inputs.<From> to follow <To>.
type FollowAddChange struct {
	ID   string
	From string
	To   string
}

// FollowRemoveChange deletes a follows binding.
type FollowRemoveChange struct {
	ID   string
	From string
}

func (c AddChange) Target() string          { return c.ID }
func (c RemoveChange) Target() string       { return c.ID }
func (c URIChange) Target() string          { return c.ID }
func (c PinChange) Target() string          { return c.ID }
func (c UnpinChange) Target() string        { return c.ID }
func (c FollowAddChange) Target() string    { return c.ID }
func (c FollowRemoveChange) Target() string { return c.ID }

func (AddChange) change()          {}
func (RemoveChange) change()       {}
func (URIChange) change()          {}
func (PinChange) change()          {}
func (UnpinChange) change()        {}
func (FollowAddChange) change()    {}
func (FollowRemoveChange) change() {}
