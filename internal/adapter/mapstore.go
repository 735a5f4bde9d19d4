package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	m "github.com/BAL-DMU/mapcov/internal/model"
)

const mapFileExt = ".map"

// MapStore abstracts access to the mapping files on disk so the domain
// layer can be tested without touching the filesystem.
type MapStore interface {
	// List returns the names of all mapping files, relative to the
	// store's directory, in lexical order.
	List() ([]m.Path, error)

	// Read loads the named mapping file.
	Read(file m.Path) (string, error)
}

type localMapStore struct {
	dir string
}

// NewMapStore creates a MapStore over the given directory.
func NewMapStore(dir string) MapStore {
	return &localMapStore{dir: dir}
}

func (s *localMapStore) List() ([]m.Path, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read map directory %s: %w", s.dir, err)
	}

	var files []m.Path

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), mapFileExt) {
			continue
		}

		files = append(files, m.Path(entry.Name()))
	}

	return files, nil
}

func (s *localMapStore) Read(file m.Path) (string, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, string(file)))
	if err != nil {
		return "", err
	}

	return string(content), nil
}
