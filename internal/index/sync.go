package index

import (
	"log/slog"
	"time"

	"github.com/starford/memolog/internal/checksum"
	"github.com/starford/memolog/internal/parser"
	"github.com/starford/memolog/internal/storage"
)

// Sync walks the vault and brings the index up to date. Changed files are
// re-parsed and upserted; memos whose files are gone are removed.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	indexed := 0
	for _, m := range metas {
		id := storage.IDForPath(m.Path)
		disk[id] = struct{}{}

		if checksums[id] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		indexed++
	}

	removed := 0
	for id := range checksums {
		if _, ok := disk[id]; ok {
			continue
		}
		if err := db.DeleteNote(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		removed++
	}

	logger.Info("sync: done",
		slog.Int("files", len(metas)),
		slog.Int("indexed", indexed),
		slog.Int("removed", removed))
	return nil
}

// indexFile parses a memo file and upserts it. modTime stands in for the
// creation time of files written without frontmatter.
func indexFile(db *DB, path string, data []byte, modTime time.Time) error {
	res, err := parser.Parse(data)
	if err != nil {
		return err
	}
	n := res.Note(storage.IDForPath(path))
	if n.CreatedAt.IsZero() {
		n.CreatedAt = modTime
		n.DisplayTime = modTime
	}
	return db.UpsertNote(NoteRow{
		ID:          n.ID,
		Title:       res.Title,
		Checksum:    checksum.Sum(data),
		Tags:        n.Tags,
		Body:        n.Content,
		Visibility:  n.Visibility,
		CreatedAt:   n.CreatedAt,
		DisplayTime: n.DisplayTime,
	}, res.Links)
}
