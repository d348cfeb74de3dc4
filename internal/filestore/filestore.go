package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store is the object storage collaborator invoice documents are written
// to. Put returns an opaque ref usable with Open later.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

type localStore struct {
	root string
}

// NewLocalStore stores objects under root on the local filesystem.
func NewLocalStore(root string) (Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create file store root: %w", err)
	}
	return &localStore{root: root}, nil
}

func (s *localStore) Put(_ context.Context, name string, r io.Reader) (string, error) {
	name = sanitize(name)
	path := filepath.Join(s.root, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}
	return name, nil
}

func (s *localStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, sanitize(ref)))
}

// sanitize keeps refs inside the root.
func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.ReplaceAll(name, "..", "")
}
