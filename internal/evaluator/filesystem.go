package evaluator

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// FileSystem is the injected collaborator for include()'s small reads.
// The core never dials the network or spawns processes; this interface
// is the one place it touches a filesystem at all, and hosts may supply
// an in-memory or virtual implementation for tests and embedded editors.
type FileSystem interface {
	// ReadFile returns the raw bytes and a best-effort detected MIME type
	// for path, resolved relative to dir.
	ReadFile(dir, path string) (data []byte, mimeType string, err error)
}

// OSFileSystem reads from the local disk, resolving relative paths
// against the directory of the including document.
type OSFileSystem struct{}

// ReadFile implements FileSystem using os.ReadFile and a mime sniff based
// on extension first, content second.
func (OSFileSystem) ReadFile(dir, path string) ([]byte, string, error) {
	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(dir, path)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", err
	}
	return data, detectMIME(full, data), nil
}

func detectMIME(path string, data []byte) string {
	if ext := filepath.Ext(path); ext != "" {
		if m := mime.TypeByExtension(ext); m != "" {
			return stripParams(m)
		}
	}
	if len(data) == 0 {
		return "text/plain"
	}
	return stripParams(http.DetectContentType(data))
}

func stripParams(m string) string {
	for i, c := range m {
		if c == ';' {
			return m[:i]
		}
	}
	return m
}
