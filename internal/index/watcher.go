package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/memolog/internal/checksum"
	"github.com/starford/memolog/internal/storage"
)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called with a memo id after the watcher changed the index.
type EventCallback func(kind, id string)

// Watch follows file changes under vaultRoot until ctx is cancelled, keeping
// the index current with edits made outside the service. Writes that the
// index already reflects (same checksum) are not reported, so memos saved
// through the store do not echo back as external edits.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	notify := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
			return
		}
		reconcileTimer.Reset(reconcileDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name
			if strings.HasPrefix(filepath.Base(absPath), ".") {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add dir failed", slog.String("path", absPath), slog.String("error", addErr.Error()))
					}
					// Files may land in a new directory before it is watched.
					scheduleReconcile()
					continue
				}
			}

			if !strings.HasSuffix(absPath, storage.Ext) {
				continue
			}
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			id := storage.IDForPath(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, changed := reindex(db, store, rel, logger)
				if changed {
					notify(kind, id)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A rename fires on the old path; the new path arrives as a
				// Create, and the reconcile pass catches anything missed.
				if cs, _ := db.GetChecksum(id); cs == "" {
					continue
				}
				if delErr := db.DeleteNote(id); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", delErr.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				notify(EventDeleted, id)
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex re-reads rel and upserts it unless the index already holds the same
// checksum. It reports whether the memo was new or updated.
func reindex(db *DB, store storage.Provider, rel string, logger *slog.Logger) (string, bool) {
	data, err := store.Read(rel)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return "", false
	}
	id := storage.IDForPath(rel)
	prev, _ := db.GetChecksum(id)
	if prev == checksum.Sum(data) {
		return "", false
	}
	if err := indexFile(db, rel, data, time.Now()); err != nil {
		logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return "", false
	}
	kind := EventUpdated
	if prev == "" {
		kind = EventCreated
	}
	logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
	return kind, true
}

// reconcile diffs the vault against the index in two batch lookups, dropping
// stale rows and indexing files the event stream missed.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, notify func(kind, id string)) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id := storage.IDForPath(m.Path)
		disk[id] = struct{}{}
		prev, known := checksums[id]
		if prev == m.Checksum {
			continue
		}
		data, readErr := store.Read(m.Path)
		if readErr != nil {
			continue
		}
		if idxErr := indexFile(db, m.Path, data, m.UpdatedAt); idxErr != nil {
			continue
		}
		if known {
			notify(EventUpdated, id)
		} else {
			notify(EventCreated, id)
		}
	}

	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if delErr := db.DeleteNote(id); delErr == nil {
			notify(EventDeleted, id)
		}
	}
}

// addDirsRecursive watches root and every non-hidden subdirectory.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
