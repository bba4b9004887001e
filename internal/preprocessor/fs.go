package preprocessor

import (
	"os"
	"path/filepath"
)

// FileSystem abstracts #include file resolution so tests can supply an
// in-memory tree instead of touching disk, the same separation the
// teacher draws between internal/runtime/vfs and its fsnotify-backed
// implementation.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Abs(path string) (string, error)
	Dir(path string) string
	Join(elem ...string) string
}

// OSFileSystem is the default FileSystem backed by the real filesystem.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }
func (OSFileSystem) Abs(path string) (string, error)      { return filepath.Abs(path) }
func (OSFileSystem) Dir(path string) string                { return filepath.Dir(path) }
func (OSFileSystem) Join(elem ...string) string             { return filepath.Join(elem...) }

// MemFS is an in-memory FileSystem for tests: a flat map of path to
// contents, with Abs/Dir/Join implemented via path-style joins so
// callers don't need a real working directory.
type MemFS struct {
	Files map[string]string
}

func NewMemFS(files map[string]string) *MemFS { return &MemFS{Files: files} }

func (m *MemFS) ReadFile(path string) ([]byte, error) {
	data, ok := m.Files[path]
	if !ok {
		return nil, os.ErrNotExist
	}

	return []byte(data), nil
}

func (m *MemFS) Abs(path string) (string, error) { return filepath.Clean(path), nil }
func (m *MemFS) Dir(path string) string           { return filepath.Dir(path) }
func (m *MemFS) Join(elem ...string) string       { return filepath.Join(elem...) }
