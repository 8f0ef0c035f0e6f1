// Package importer watches a drop directory and uploads files placed
// there into the vault, routed by the import rules file. A successfully
// imported file is removed from the drop directory.
package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/alexjbarnes/vault-share/internal/errors"
	"github.com/alexjbarnes/vault-share/internal/vault"
)

const (
	// dropDirPerm is the permission mode for the drop directory when
	// ensuring it exists before starting the watcher.
	dropDirPerm = fs.FileMode(0o755)

	// debounceInterval is how often the importer checks for pending
	// filesystem events, batching rapid writes into a single import.
	debounceInterval = 500 * time.Millisecond

	// settleAfter is how long a file must sit unchanged before it is
	// imported, so half-copied files are not picked up.
	settleAfter = 300 * time.Millisecond
)

// uploader is the subset of the mutation service the importer needs.
// Extracted for testability.
type uploader interface {
	Upload(ctx context.Context, name string, content []byte, parentID string) (vault.FileEntry, error)
}

// Importer monitors the drop directory and uploads new files into the
// vault.
type Importer struct {
	dir     string
	rules   Rules
	up      uploader
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	// queued holds imports that failed transiently. Keyed by absolute
	// path so later events for the same file overwrite earlier ones.
	queued map[string]struct{}
}

// New creates an importer over the given drop directory.
func New(dir string, rules Rules, up uploader, logger *slog.Logger) *Importer {
	return &Importer{
		dir:    dir,
		rules:  rules,
		up:     up,
		logger: logger,
		queued: make(map[string]struct{}),
	}
}

// Watch starts watching the drop directory. It blocks until the context
// is cancelled. Files already present at startup are imported first.
func (im *Importer) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	im.watcher = watcher
	defer watcher.Close()

	if err := os.MkdirAll(im.dir, dropDirPerm); err != nil {
		return fmt.Errorf("creating drop dir: %w", err)
	}

	if err := im.addRecursive(im.dir); err != nil {
		return fmt.Errorf("watching drop dir: %w", err)
	}

	im.logger.Info("import watcher started", slog.String("dir", im.dir))

	im.importExisting(ctx)

	// Debounce: wait for writes to settle before importing.
	pending := make(map[string]time.Time)

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if im.shouldIgnore(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				// New subdirectories are watched so drops into them are
				// seen. Lstat avoids following symlinks out of the drop
				// directory.
				if event.Has(fsnotify.Create) {
					info, err := os.Lstat(event.Name)
					if err == nil && info.IsDir() && info.Mode()&os.ModeSymlink == 0 {
						_ = im.addRecursive(event.Name)
						continue
					}
				}

				pending[event.Name] = time.Now()
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				delete(pending, event.Name)
				delete(im.queued, event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			im.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			im.drainQueue(ctx)

			now := time.Now()
			for path, t := range pending {
				if now.Sub(t) < settleAfter {
					continue
				}

				delete(pending, path)
				im.importFile(ctx, path)
			}
		}
	}
}

// importExisting imports files that were dropped while the importer was
// not running.
func (im *Importer) importExisting(ctx context.Context) {
	_ = filepath.WalkDir(im.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		if im.shouldIgnore(path) {
			return nil
		}

		im.importFile(ctx, path)

		return nil
	})
}

func (im *Importer) importFile(ctx context.Context, absPath string) {
	relPath, err := filepath.Rel(im.dir, absPath)
	if err != nil {
		im.logger.Warn("computing relative path", slog.String("error", err.Error()))
		return
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}

		im.logger.Warn("reading dropped file",
			slog.String("path", relPath),
			slog.String("error", err.Error()),
		)

		return
	}

	folder := im.rules.TargetFolder(relPath)
	name := filepath.Base(relPath)

	entry, err := im.up.Upload(ctx, name, content, folder)
	if err != nil {
		im.logger.Warn("import failed",
			slog.String("path", relPath),
			slog.String("error", err.Error()),
		)

		// Transient failures retry on the next tick. Anything else (a
		// validation error, say a missing target folder) would fail the
		// same way forever, so the file stays put for the user to see.
		if apperrors.IsTransient(err) {
			im.queued[absPath] = struct{}{}
		}

		return
	}

	if err := os.Remove(absPath); err != nil {
		im.logger.Warn("removing imported file",
			slog.String("path", relPath),
			slog.String("error", err.Error()),
		)
	}

	im.logger.Info("imported",
		slog.String("path", relPath),
		slog.String("file_id", entry.ID),
		slog.String("folder", folder),
	)
}

// drainQueue retries imports that failed transiently.
func (im *Importer) drainQueue(ctx context.Context) {
	if len(im.queued) == 0 {
		return
	}

	paths := make([]string, 0, len(im.queued))
	for path := range im.queued {
		paths = append(paths, path)
	}

	im.logger.Info("retrying queued imports", slog.Int("count", len(paths)))

	for _, path := range paths {
		delete(im.queued, path)
		im.importFile(ctx, path)
	}
}

func (im *Importer) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if im.shouldIgnore(path) {
			return filepath.SkipDir
		}

		if d.Type()&os.ModeSymlink != 0 {
			return filepath.SkipDir
		}

		return im.watcher.Add(path)
	})
}

func (im *Importer) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}

	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".part") {
		return true
	}

	return im.rules.Ignored(base)
}
