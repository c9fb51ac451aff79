// Package storage keeps memo files in the vault directory.
package storage

import (
	"strings"

	"github.com/starford/memolog/internal/models"
)

// Ext is the file extension of memo files.
const Ext = ".md"

// Provider is the interface for vault file operations. Paths are relative to
// the vault root.
type Provider interface {
	// List returns metadata for every memo file under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}

// PathForID maps a memo id such as "memos/3f2c" to its vault path.
func PathForID(id string) string { return id + Ext }

// IDForPath is the inverse of PathForID. Backslashes from Windows paths are
// normalised so ids stay stable across platforms.
func IDForPath(path string) string {
	return strings.TrimSuffix(strings.ReplaceAll(path, "\\", "/"), Ext)
}
