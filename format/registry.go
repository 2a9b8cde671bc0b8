package format

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// The registry maps file extensions and magic prefixes to codecs. Adding a
// format means registering one implementation, usually from the codec
// package's init.
var (
	registryMu sync.RWMutex
	byExt      = make(map[string]Format)
	all        []Format
)

// Register adds a codec to the registry. Later registrations win on
// extension collisions.
func Register(f Format) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, ext := range f.Extensions() {
		byExt[strings.ToLower(ext)] = f
	}
	all = append(all, f)
}

// ByExtension resolves a codec from a path's extension.
func ByExtension(path string) Format {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	registryMu.RLock()
	defer registryMu.RUnlock()
	return byExt[ext]
}

// ByMagic resolves a codec by sniffing leading bytes.
func ByMagic(data []byte) Format {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, f := range all {
		for _, magic := range f.Magics() {
			if len(magic) > 0 && bytes.HasPrefix(data, magic) {
				return f
			}
		}
	}
	return nil
}

// All returns the registered codecs sorted by name.
func All() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := append([]Format(nil), all...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// resolve picks a codec for path, preferring the extension and falling back
// to magic sniffing of the stream contents.
func resolve(path string, a Archive) (Format, error) {
	if f := ByExtension(path); f != nil {
		return f, nil
	}
	data, err := ReadAll(a, path)
	if err != nil {
		return nil, err
	}
	if f := ByMagic(data); f != nil {
		return f, nil
	}
	return nil, ErrUnknownFormat
}
