// Package storage defines the local backup directory abstraction.
package storage

import "github.com/starford/newsdesk/internal/models"

// Provider is the interface for backup file operations. All paths are
// relative to the provider root.
type Provider interface {
	// List returns metadata for every stored file under dir.
	List(dir string) ([]models.StoredFile, error)
	Read(path string) ([]byte, error)
	// Write atomically replaces path with content.
	Write(path string, content []byte) error
	Delete(path string) error
}
