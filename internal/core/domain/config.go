package domain

import (
	"strconv"
	"strings"
)

// InputStyle selects how newly written inputs are laid out.
type InputStyle string

const (
	// StyleDotted writes "inputs.<id>.url = ...;" statements.
	StyleDotted InputStyle = "dotted"

	// StyleNested writes "<id> = { url = ...; };" blocks inside an
	// inputs attribute set.
	StyleNested InputStyle = "nested"
)

// InputOrdering selects where newly written inputs are placed.
type InputOrdering string

const (
	// OrderEnd appends new inputs after the existing ones.
	OrderEnd InputOrdering = "end"

	// OrderAlphabetical places new inputs before the first existing
	// input with a greater id.
	OrderAlphabetical InputOrdering = "alphabetical"
)

// DefaultChannelPrefixes are the branch name prefixes recognized as
// release channels when no configuration overrides them.
var DefaultChannelPrefixes = []string{
	"nixos-", "nixpkgs-", "release-", "nix-darwin-",
}

// Config is the effective runtime configuration, assembled from the
// discovered TOML files plus command line overrides. Values are read
// only after construction.
type Config struct {
	// Ignore lists inputs the follows reconciler must leave alone,
	// either as a bare id or as a "parent.child" edge.
	Ignore []string

	// Aliases maps a canonical input id to alternative ids that count
	// as the same logical input during reconciliation.
	Aliases map[string][]string

	// ChannelPrefixes overrides DefaultChannelPrefixes when non-empty.
	ChannelPrefixes []string

	// Style is the layout used for inputs this tool writes.
	Style InputStyle

	// Ordering is the placement policy for new inputs.
	Ordering InputOrdering

	// NonInteractive disables prompting; ambiguous operations fail
	// instead of asking.
	NonInteractive bool
}

// DefaultConfig returns the configuration used when no config file is
// found.
func DefaultConfig() *Config {
	return &Config{Style: StyleDotted, Ordering: OrderEnd}
}

// Ignored reports whether id is excluded from reconciliation. Entries
// in path form ("parent.child") only apply to single edges and never
// match a bare id.
func (c *Config) Ignored(id string) bool {
	for _, ig := range c.Ignore {
		if ig == id {
			return true
		}
	}
	return false
}

// IgnoredEdge reports whether the nested input of parent is excluded.
// A bare entry matches the nested name under any parent, a
// "parent.child" entry matches exactly that pair.
func (c *Config) IgnoredEdge(parent, child string) bool {
	for _, ig := range c.Ignore {
		if ig == child || ig == parent+"."+child {
			return true
		}
	}
	return false
}

// Canonical resolves id through the alias table: if id is listed as an
// alternative of some canonical id, that canonical id is returned,
// otherwise id itself.
func (c *Config) Canonical(id string) string {
	if _, ok := c.Aliases[id]; ok {
		return id
	}
	for canonical, alts := range c.Aliases {
		for _, alt := range alts {
			if alt == id {
				return canonical
			}
		}
	}
	return id
}

// SameLogicalInput reports whether two ids name the same logical input
// under the alias table.
func (c *Config) SameLogicalInput(a, b string) bool {
	return c.Canonical(a) == c.Canonical(b)
}

func (c *Config) channelPrefixes() []string {
	if len(c.ChannelPrefixes) > 0 {
		return c.ChannelPrefixes
	}
	return DefaultChannelPrefixes
}

// IsChannel reports whether ref names a release channel: either a
// recognized prefix followed by a version or "unstable", or a bare
// YY.MM pair where the month is a NixOS release month.
func (c *Config) IsChannel(ref string) bool {
	for _, prefix := range c.channelPrefixes() {
		if rest, ok := strings.CutPrefix(ref, prefix); ok {
			return rest == "unstable" || isReleasePair(rest)
		}
	}
	return isReleasePair(ref)
}

// ChannelVersion extracts the YY.MM pair from a channel ref, or ""
// for unstable and non-channel refs.
func (c *Config) ChannelVersion(ref string) string {
	for _, prefix := range c.channelPrefixes() {
		if rest, ok := strings.CutPrefix(ref, prefix); ok {
			if isReleasePair(rest) {
				return rest
			}
			return ""
		}
	}
	if isReleasePair(ref) {
		return ref
	}
	return ""
}

// isReleasePair matches YY.MM with the month being a release month.
func isReleasePair(s string) bool {
	year, month, ok := strings.Cut(s, ".")
	if !ok || len(year) != 2 || len(month) != 2 {
		return false
	}
	if _, err := strconv.Atoi(year); err != nil {
		return false
	}
	return month == "05" || month == "11"
}
