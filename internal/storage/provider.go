// Package storage defines file access confined to the repository root.
package storage

// Provider is the interface for file operations relative to the repository root.
type Provider interface {
	// Root returns the absolute repository root.
	Root() string
	// List returns the visible entry names of dir, sorted.
	List(dir string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether path exists.
	Exists(path string) bool
}

// Entry is one item of a directory listing.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
}
