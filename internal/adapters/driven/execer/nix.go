// Package execer shells out to nix for the operations this tool does
// not reimplement, currently regenerating flake.lock.
package execer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/core/ports/driven"
	"github.com/a-kenji/flake-edit/internal/logger"
)

// DefaultLockTimeout bounds a lock regeneration run.
const DefaultLockTimeout = 10 * time.Minute

var _ driven.Locker = (*NixLocker)(nil)

// NixLocker runs "nix flake lock" in the flake directory.
type NixLocker struct {
	// Binary overrides the nix executable name, mainly for tests.
	Binary string

	// Timeout overrides DefaultLockTimeout when positive.
	Timeout time.Duration
}

// Relock regenerates flake.lock for the flake in dir.
func (l *NixLocker) Relock(ctx context.Context, dir string) error {
	binary := l.Binary
	if binary == "" {
		binary = "nix"
	}
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "flake", "lock")
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("running %s flake lock in %s", binary, dir)
	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return fmt.Errorf("%w: %s", domain.ErrLockRegeneration, msg)
		}
		return fmt.Errorf("%w: %v", domain.ErrLockRegeneration, err)
	}
	return nil
}
