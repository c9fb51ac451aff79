package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/memolog/internal/models"
)

// NoteRow is a memo as stored in the notes table.
type NoteRow struct {
	ID          string
	Title       string
	Checksum    string
	Tags        []string
	Body        string
	Visibility  models.Visibility
	CreatedAt   time.Time
	DisplayTime time.Time
}

// Note converts the row back into a models.Note.
func (r NoteRow) Note() models.Note {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return models.Note{
		ID:          r.ID,
		Content:     r.Body,
		Visibility:  r.Visibility,
		Tags:        tags,
		Checksum:    r.Checksum,
		CreatedAt:   r.CreatedAt,
		DisplayTime: r.DisplayTime,
	}
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Title   string
	Snippet string
}

// UpsertNote inserts or replaces a memo, its FTS entry and its outgoing
// back-references in one transaction.
func (db *DB) UpsertNote(n NoteRow, links []models.Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	tagsJSON, _ := json.Marshal(n.Tags)
	if n.DisplayTime.IsZero() {
		n.DisplayTime = n.CreatedAt
	}

	_, err = tx.Exec(`
		INSERT INTO notes (id, title, checksum, tags, body, visibility, created_at, display_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title        = excluded.title,
			checksum     = excluded.checksum,
			tags         = excluded.tags,
			body         = excluded.body,
			visibility   = excluded.visibility,
			created_at   = excluded.created_at,
			display_time = excluded.display_time
	`, n.ID, n.Title, n.Checksum, string(tagsJSON), n.Body, string(n.Visibility), n.CreatedAt.UTC(), n.DisplayTime.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	if err := ftsUpsert(tx, n.ID, n.Title, n.Body, n.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.ID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, l := range links {
			if l.Target == n.ID {
				continue
			}
			if _, err := stmt.Exec(n.ID, l.Target, l.Type); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a memo, its FTS entry and its outgoing links.
func (db *DB) DeleteNote(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, id); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a memo, or "" when it is not
// indexed.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns id -> checksum for every indexed memo.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// ListNotes returns memos ordered by display time, newest first, together
// with the total count. limit <= 0 returns everything; tag filters on an
// exact tag.
func (db *DB) ListNotes(limit, offset int, tag string) ([]NoteRow, int, error) {
	where := ""
	args := []any{}
	if tag != "" {
		where = `WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.conn.Query(`
		SELECT id, title, checksum, tags, body, visibility, created_at, display_time
		FROM notes `+where+`
		ORDER BY display_time DESC, id
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var r NoteRow
		var tags, vis string
		if err := rows.Scan(&r.ID, &r.Title, &r.Checksum, &tags, &r.Body, &vis, &r.CreatedAt, &r.DisplayTime); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tags), &r.Tags)
		r.Visibility = models.Visibility(vis)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Backlinks returns the ids of memos that reference target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
