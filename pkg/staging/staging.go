// Package staging manages the per-request scratch directories where
// extraction strategies write media before delivery. A scope lives for
// exactly one pipeline run and is removed on every exit path.
package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"grabbot/pkg/logger"
)

// Kind is the media kind inferred from a staged file's extension
type Kind int

const (
	KindOther Kind = iota
	KindImage
	KindVideo
	KindAudio
)

var extKinds = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".webp": KindImage,
	".gif":  KindImage,
	".mp4":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,
	".mov":  KindVideo,
	".mp3":  KindAudio,
	".m4a":  KindAudio,
	".ogg":  KindAudio,
	".opus": KindAudio,
}

// KindOf returns the media kind for a file path based on its extension
func KindOf(path string) Kind {
	return extKinds[strings.ToLower(filepath.Ext(path))]
}

// File is one staged artifact
type File struct {
	Path string
	Size int64
	Kind Kind
}

// Scope is a uniquely named directory owned by a single pipeline run
type Scope struct {
	dir    string
	logger logger.Logger
}

// NewScope creates a fresh scope directory under baseDir
func NewScope(baseDir string, log logger.Logger) (*Scope, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging root: %w", err)
	}

	dir, err := os.MkdirTemp(baseDir, "req-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging scope: %w", err)
	}

	return &Scope{dir: dir, logger: log}, nil
}

// Dir returns the scope's directory path
func (s *Scope) Dir() string {
	return s.dir
}

// Path returns a path for a new artifact inside the scope
func (s *Scope) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Create opens a new artifact file inside the scope for writing
func (s *Scope) Create(name string) (*os.File, error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %w", err)
	}
	return f, nil
}

// Save streams r into a new artifact file and returns its path and size
func (s *Scope) Save(name string, r io.Reader) (string, int64, error) {
	path := s.Path(name)

	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create staged file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write staged file: %w", err)
	}
	if closeErr != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to close staged file: %w", closeErr)
	}

	return path, n, nil
}

// Remove deletes a single staged artifact
func (s *Scope) Remove(path string) error {
	if filepath.Dir(path) != s.dir {
		return fmt.Errorf("path %s is outside the scope", path)
	}
	return os.Remove(path)
}

// Files enumerates the scope's artifacts in stable name order
func (s *Scope) Files() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging scope: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		files = append(files, File{
			Path: path,
			Size: info.Size(),
			Kind: KindOf(path),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Cleanup removes the scope directory recursively. Failures are logged
// but never surfaced; cleanup must not mask the run's outcome.
func (s *Scope) Cleanup() {
	err := os.RemoveAll(s.dir)
	if s.logger != nil {
		logger.LogCleanup(s.logger, s.dir, err)
	}
}
