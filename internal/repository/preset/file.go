package preset

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads the catalogue from a YAML file. The file's modification
// time is its revision, so edits are picked up without a restart.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the file.
func (s *FileSource) Load(_ context.Context) (*Catalogue, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read presets %s: %w", s.path, err)
	}
	c, err := ParseCatalogue(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return c, nil
}

// Revision returns the file's modification time in nanoseconds.
func (s *FileSource) Revision(_ context.Context) (int64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("stat presets %s: %w", s.path, err)
	}
	return fi.ModTime().UnixNano(), nil
}

// Ping checks that the file is readable.
func (s *FileSource) Ping(ctx context.Context) error {
	_, err := s.Revision(ctx)
	return err
}
