package format

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Archive is the abstract named-byte-stream storage every codec reads from
// and writes to. The core never assumes a particular backing.
type Archive interface {
	Exists(path string) bool
	ReadStream(path string) (io.ReadCloser, error)
	WriteStream(path string) (io.WriteCloser, error)
	Files() []ArchiveEntry
}

// ArchiveEntry describes one stored stream.
type ArchiveEntry struct {
	Name     string
	FullPath string
	Dir      bool
}

// MemoryArchive keeps all streams in memory. It backs tests and the
// intermediate buffers of container codecs.
type MemoryArchive struct {
	entries map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{entries: make(map[string][]byte)}
}

func (a *MemoryArchive) Exists(path string) bool {
	_, ok := a.entries[path]
	return ok
}

func (a *MemoryArchive) ReadStream(path string) (io.ReadCloser, error) {
	data, ok := a.entries[path]
	if !ok {
		return nil, fmt.Errorf("%w: no entry %q", os.ErrNotExist, path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *MemoryArchive) WriteStream(path string) (io.WriteCloser, error) {
	return &memoryWriter{archive: a, path: path}, nil
}

func (a *MemoryArchive) Files() []ArchiveEntry {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]ArchiveEntry, len(names))
	for i, name := range names {
		out[i] = ArchiveEntry{Name: filepath.Base(name), FullPath: name}
	}
	return out
}

// Bytes returns the stored stream, or nil.
func (a *MemoryArchive) Bytes(path string) []byte { return a.entries[path] }

type memoryWriter struct {
	archive *MemoryArchive
	path    string
	buf     bytes.Buffer
}

func (w *memoryWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

// Close commits the buffered bytes; nothing is visible before.
func (w *memoryWriter) Close() error {
	w.archive.entries[w.path] = w.buf.Bytes()
	return nil
}

// DirArchive stores streams as plain files below a root directory.
type DirArchive struct {
	root string
}

func NewDirArchive(root string) *DirArchive { return &DirArchive{root: root} }

func (a *DirArchive) resolve(path string) string { return filepath.Join(a.root, path) }

func (a *DirArchive) Exists(path string) bool {
	_, err := os.Stat(a.resolve(path))
	return err == nil
}

func (a *DirArchive) ReadStream(path string) (io.ReadCloser, error) {
	return os.Open(a.resolve(path))
}

func (a *DirArchive) WriteStream(path string) (io.WriteCloser, error) {
	full := a.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return os.Create(full)
}

func (a *DirArchive) Files() []ArchiveEntry {
	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil
	}
	out := make([]ArchiveEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, ArchiveEntry{
			Name:     e.Name(),
			FullPath: filepath.Join(a.root, e.Name()),
			Dir:      e.IsDir(),
		})
	}
	return out
}

// ReadAll drains one archive stream fully.
func ReadAll(a Archive, path string) ([]byte, error) {
	r, err := a.ReadStream(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteAll stores one complete stream.
func WriteAll(a Archive, path string, data []byte) error {
	w, err := a.WriteStream(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
