package driven

import "github.com/a-kenji/flake-edit/internal/core/domain"

// ConfigStore loads the effective configuration from wherever the
// adapter keeps it.
type ConfigStore interface {
	Load() (*domain.Config, error)
}
