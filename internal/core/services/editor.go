// Package services contains the application core: the change engine,
// the toggle classifier, the follows reconciler and the version
// resolver. Services depend on ports only, never on adapters.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/core/ports/driven"
	"github.com/a-kenji/flake-edit/internal/core/ports/driving"
	"github.com/a-kenji/flake-edit/internal/logger"
	"github.com/a-kenji/flake-edit/internal/manifest"
)

// Editor applies changes to one manifest. It holds the parsed document
// and the optional lock graph; callers persist the resulting text.
type Editor struct {
	doc    *manifest.Document
	lock   *domain.LockGraph
	cfg    *domain.Config
	forge  driven.Forge
	prompt driven.Prompter
}

var _ driving.Editor = (*Editor)(nil)

// NewEditor builds the editor service. The lock graph may be nil when
// no flake.lock exists, forge and prompt may be nil for offline and
// non-interactive use respectively.
func NewEditor(doc *manifest.Document, lock *domain.LockGraph, cfg *domain.Config,
	forge driven.Forge, prompt driven.Prompter) (*Editor, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: no document", domain.ErrMalformedManifest)
	}
	if cfg == nil {
		cfg = domain.DefaultConfig()
	}
	return &Editor{doc: doc, lock: lock, cfg: cfg, forge: forge, prompt: prompt}, nil
}

// Inputs lists the manifest's declared inputs.
func (e *Editor) Inputs(_ context.Context) ([]domain.Input, error) {
	return e.doc.Inputs()
}

// Text returns the current manifest source.
func (e *Editor) Text() string { return e.doc.Text() }

// Apply performs one change and returns the updated manifest text.
// The change is validated against the document first, so a failed
// change leaves the text untouched.
func (e *Editor) Apply(ctx context.Context, change domain.Change) (string, error) {
	var err error
	switch c := change.(type) {
	case domain.AddChange:
		err = e.applyAdd(c)
	case domain.RemoveChange:
		err = e.applyRemove(c)
	case domain.URIChange:
		err = e.applyURI(c)
	case domain.PinChange:
		err = e.applyPin(ctx, c)
	case domain.UnpinChange:
		err = e.applyUnpin(c)
	case domain.FollowAddChange:
		err = e.applyFollowAdd(c)
	case domain.FollowRemoveChange:
		err = e.applyFollowRemove(c)
	default:
		err = fmt.Errorf("unsupported change %T", change)
	}
	if err != nil {
		return "", err
	}
	return e.doc.Text(), nil
}

func (e *Editor) applyAdd(c domain.AddChange) error {
	ref, err := domain.ParseRef(c.URI)
	if err != nil {
		return err
	}
	id := c.ID
	if id == "" {
		id = ref.InferID()
		if id == "" {
			return &domain.AmbiguousError{Err: domain.ErrAmbiguousID}
		}
		logger.Debug("inferred id %q from %q", id, c.URI)
	}
	in := domain.Input{ID: id, Ref: ref, Flake: c.Flake, Follows: c.Follows}
	for _, f := range c.Follows {
		target, _, _ := strings.Cut(f.To, "/")
		if !e.doc.HasInput(target) {
			return fmt.Errorf("%w: follows target %q", domain.ErrInputNotFound, f.To)
		}
	}
	if c.Overwrite && e.doc.HasInput(id) {
		if err := e.doc.RemoveInputStatements(id); err != nil {
			return err
		}
		logger.Info("overwriting input %q", id)
	}
	return e.doc.AddInput(in, e.doc.DominantStyle(e.cfg.Style), e.cfg.Ordering)
}

func (e *Editor) applyRemove(c domain.RemoveChange) error {
	id, err := e.resolveID(c.ID)
	if err != nil {
		return err
	}
	cascaded, err := e.doc.RemoveInput(id)
	if err != nil {
		return err
	}
	for _, owner := range cascaded {
		logger.Info("removed follows binding for %q from %q", id, owner)
	}
	return nil
}

func (e *Editor) applyURI(c domain.URIChange) error {
	id, err := e.resolveID(c.ID)
	if err != nil {
		return err
	}
	ref, err := domain.ParseRef(c.URI)
	if err != nil {
		return err
	}
	return e.doc.SetURL(id, ref)
}

// applyPin pins the input to an explicit ref or rev, or to the
// revision currently recorded in the lock file.
func (e *Editor) applyPin(ctx context.Context, c domain.PinChange) error {
	id, err := e.resolveID(c.ID)
	if err != nil {
		return err
	}
	ref, err := e.refOf(id)
	if err != nil {
		return err
	}
	pin := c.RefOrRev
	if pin == "" {
		pin, err = e.lockedRev(ctx, id, ref)
		if err != nil {
			return err
		}
	}
	ref.SetRefOrRev(pin)
	return e.doc.SetURL(id, ref)
}

// lockedRev prefers the lock file and falls back to asking the forge
// for the tip of the currently tracked ref.
func (e *Editor) lockedRev(ctx context.Context, id string, ref *domain.SourceRef) (string, error) {
	if e.lock != nil {
		rev, err := e.lock.RevByID(id)
		if err == nil {
			return rev, nil
		}
		logger.Debug("lock lookup for %q: %v", id, err)
	}
	if e.forge != nil && ref.Kind == domain.KindForge {
		return e.forge.RevOf(ctx, ref.Owner, ref.Repo, ref.Ref())
	}
	return "", fmt.Errorf("%w: cannot resolve revision for %q", domain.ErrNoLockFile, id)
}

func (e *Editor) applyUnpin(c domain.UnpinChange) error {
	id, err := e.resolveID(c.ID)
	if err != nil {
		return err
	}
	ref, err := e.refOf(id)
	if err != nil {
		return err
	}
	if !ref.Pinned() {
		return fmt.Errorf("%w: %q", domain.ErrNothingToUnpin, id)
	}
	ref.ClearRefOrRev()
	return e.doc.SetURL(id, ref)
}

func (e *Editor) applyFollowAdd(c domain.FollowAddChange) error {
	id, err := e.resolveID(c.ID)
	if err != nil {
		if errors.Is(err, domain.ErrInputNotFound) {
			return fmt.Errorf("%w: %q", domain.ErrUnknownParent, c.ID)
		}
		return err
	}
	target, _, _ := strings.Cut(c.To, "/")
	if !e.doc.HasInput(target) {
		return fmt.Errorf("%w: follows target %q", domain.ErrInputNotFound, c.To)
	}
	if err := e.checkFollowCycle(id, c.From, c.To); err != nil {
		return err
	}
	return e.doc.AddFollow(id, c.From, c.To)
}

func (e *Editor) applyFollowRemove(c domain.FollowRemoveChange) error {
	id, err := e.resolveID(c.ID)
	if err != nil {
		return err
	}
	return e.doc.RemoveFollow(id, c.From)
}

// refOf returns a copy of the input's reference safe to mutate.
func (e *Editor) refOf(id string) (*domain.SourceRef, error) {
	inputs, err := e.doc.Inputs()
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if in.ID == id {
			if in.Ref == nil {
				return nil, fmt.Errorf("%w: %q has no url", domain.ErrMalformedManifest, id)
			}
			ref := *in.Ref
			return &ref, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
}

// resolveID matches the given id exactly or as an unambiguous prefix
// of a declared input.
func (e *Editor) resolveID(id string) (string, error) {
	if id == "" {
		return "", &domain.AmbiguousError{Err: domain.ErrAmbiguousID}
	}
	inputs, err := e.doc.Inputs()
	if err != nil {
		return "", err
	}
	var candidates []string
	for _, in := range inputs {
		if in.ID == id {
			return id, nil
		}
		if strings.HasPrefix(in.ID, id) {
			candidates = append(candidates, in.ID)
		}
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("%w: %q", domain.ErrInputNotFound, id)
	case 1:
		logger.Debug("resolved %q to input %q", id, candidates[0])
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", &domain.AmbiguousError{
			Err:          domain.ErrAmbiguousID,
			ID:           id,
			Alternatives: candidates,
		}
	}
}
