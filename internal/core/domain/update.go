package domain

// UpdateResult records what the version resolver decided for one input.
type UpdateResult struct {
	ID   string
	From string
	To   string
	// Reason explains a skipped input, empty when an update applied.
	Reason string
}

// Changed reports whether the input actually moved.
func (r UpdateResult) Changed() bool {
	return r.Reason == "" && r.From != r.To
}
