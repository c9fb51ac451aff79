package index

import "github.com/starford/memolog/internal/models"

// MemoIndex is what the memo store needs from the index. Depend on this
// rather than *DB so tests can substitute a fake.
type MemoIndex interface {
	UpsertNote(n NoteRow, links []models.Link) error
	DeleteNote(id string) error
	GetChecksum(id string) (string, error)
	ListNotes(limit, offset int, tag string) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ MemoIndex = (*DB)(nil)
