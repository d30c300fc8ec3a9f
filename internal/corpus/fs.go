package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSSource reads a directory tree of documentation files. Document ids are
// slash-separated paths relative to the root, so the first path element is
// the owning service.
type FSSource struct {
	root string
}

// NewFSSource creates a source over the given root directory.
func NewFSSource(root string) *FSSource {
	return &FSSource{root: root}
}

var docExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".txt":      {},
}

// Documents walks the root and returns every documentation file, sorted by id.
func (s *FSSource) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := docExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading document %s: %w", path, err)
		}
		id := filepath.ToSlash(rel)
		service := id
		if i := strings.IndexByte(id, '/'); i > 0 {
			service = id[:i]
		}
		docs = append(docs, Document{
			ID:      id,
			Service: service,
			Text:    string(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking corpus root %s: %w", s.root, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
