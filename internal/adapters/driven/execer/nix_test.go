package execer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a-kenji/flake-edit/internal/core/domain"
)

func TestNixLocker_Relock_Success(t *testing.T) {
	l := &NixLocker{Binary: "true"}
	assert.NoError(t, l.Relock(context.Background(), t.TempDir()))
}

func TestNixLocker_Relock_Failure(t *testing.T) {
	l := &NixLocker{Binary: "false"}
	err := l.Relock(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, domain.ErrLockRegeneration)
}

func TestNixLocker_Relock_MissingBinary(t *testing.T) {
	l := &NixLocker{Binary: "definitely-not-a-real-binary"}
	err := l.Relock(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, domain.ErrLockRegeneration)
}
