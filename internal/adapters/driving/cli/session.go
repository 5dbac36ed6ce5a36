package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/a-kenji/flake-edit/internal/adapters/driven/cache"
	"github.com/a-kenji/flake-edit/internal/adapters/driven/config"
	"github.com/a-kenji/flake-edit/internal/adapters/driven/execer"
	"github.com/a-kenji/flake-edit/internal/adapters/driven/forge/github"
	"github.com/a-kenji/flake-edit/internal/adapters/driven/prompt"
	"github.com/a-kenji/flake-edit/internal/core/domain"
	"github.com/a-kenji/flake-edit/internal/core/ports/driven"
	"github.com/a-kenji/flake-edit/internal/core/services"
	"github.com/a-kenji/flake-edit/internal/diff"
	"github.com/a-kenji/flake-edit/internal/logger"
	"github.com/a-kenji/flake-edit/internal/manifest"
)

// manifestName is the file every flake project carries at its root.
const manifestName = "flake.nix"

// session is one fully wired editing run: the parsed manifest, the
// optional lock graph, the configuration, and the adapters the editor
// service needs.
type session struct {
	path     string
	original string
	editor   *services.Editor
	lock     *domain.LockGraph
	cfg      *domain.Config
	cache    *cache.Store
	locker   driven.Locker
}

// openSession loads the manifest named by --flake or discovered from
// the working directory and wires the editor service around it.
func openSession() (*session, error) {
	return openSessionAt(flakePath)
}

func openSessionAt(path string) (*session, error) {
	path, err := resolveManifest(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	doc, err := manifest.Parse(string(src))
	if err != nil {
		return nil, err
	}

	lock, err := loadLock(filepath.Join(filepath.Dir(path), "flake.lock"))
	if err != nil {
		return nil, err
	}

	store := &config.Store{StartDir: filepath.Dir(path)}
	cfg, err := store.Load()
	if err != nil {
		return nil, err
	}

	refCache := openCache()
	var forgeCache driven.RefCache
	if refCache != nil {
		forgeCache = refCache
	}
	forge := github.NewClient(forgeToken(), "", forgeCache)
	prompter := prompt.New(cfg.NonInteractive)

	editor, err := services.NewEditor(doc, lock, cfg, forge, prompter)
	if err != nil {
		return nil, err
	}
	return &session{
		path:     path,
		original: string(src),
		editor:   editor,
		lock:     lock,
		cfg:      cfg,
		cache:    refCache,
		locker:   &execer.NixLocker{},
	}, nil
}

// close releases session resources. Errors are logged, not returned,
// since nothing actionable follows a failed cache close.
func (s *session) close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.Debug("closing cache: %v", err)
		}
	}
}

// persist writes the new manifest text, or renders a diff when --diff
// is set. The text is re-parsed first so a bad edit never reaches
// disk. After a real write the lock file is regenerated unless
// --no-lock is set.
func (s *session) persist(cmd *cobra.Command, text string) error {
	if text == s.original {
		logger.Info("no changes to %s", s.path)
		return nil
	}
	if _, err := manifest.Parse(text); err != nil {
		return fmt.Errorf("refusing to write %s: %w", s.path, err)
	}

	if showDiff {
		rendered, err := diff.Unified(s.path, s.original, text)
		if err != nil {
			return err
		}
		cmd.Print(rendered)
		return nil
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(s.path, []byte(text), mode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	logger.Info("wrote %s", s.path)

	if noLock {
		return nil
	}
	return s.locker.Relock(context.Background(), filepath.Dir(s.path))
}

// rememberPair records an id/uri combination for shell completion.
// Cache trouble never fails the command.
func (s *session) rememberPair(id, uri string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.RememberPair(id, uri); err != nil {
		logger.Debug("completion cache: %v", err)
	}
}

// resolveManifest turns the --flake value into the path of a
// flake.nix file, falling back to an upward search from the working
// directory.
func resolveManifest(path string) (string, error) {
	if path == "" {
		return discoverManifest()
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("flake path: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, manifestName)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("flake path: %w", err)
		}
	}
	return filepath.Abs(path)
}

// discoverManifest walks from the working directory toward the
// filesystem root and returns the first flake.nix found.
func discoverManifest() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := start; ; {
		candidate := filepath.Join(dir, manifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %s or any parent directory",
				manifestName, start)
		}
		dir = parent
	}
}

// loadLock parses flake.lock when present. A missing lock file is not
// an error, the editor works without one.
func loadLock(path string) (*domain.LockGraph, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock file: %w", err)
	}
	return domain.ParseLock(data)
}

// openCache opens the ref cache, returning nil when it cannot be
// opened. Everything works without a cache, just slower.
func openCache() *cache.Store {
	path, err := cache.DefaultPath()
	if err != nil {
		logger.Debug("cache path: %v", err)
		return nil
	}
	store, err := cache.Open(path)
	if err != nil {
		logger.Debug("opening cache: %v", err)
		return nil
	}
	return store
}

// forgeToken reads the API token from the environment.
func forgeToken() string {
	if t := os.Getenv("FLAKE_EDIT_GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("GITHUB_TOKEN")
}
