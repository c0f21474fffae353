package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"melodypath/internal/safeio"
)

// LocalStore writes artifacts to <root>/<runID>/<name>.
type LocalStore struct {
	fs *safeio.SafeFS
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	fsys, err := safeio.NewSafeFS(root)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	return &LocalStore{fs: fsys}, nil
}

func (s *LocalStore) Root() string { return s.fs.Root() }

func (s *LocalStore) Put(_ context.Context, runID, name string, content []byte) error {
	runID, name, err := normalize(runID, name)
	if err != nil {
		return err
	}
	return s.fs.SafeWriteFile(filepath.Join(runID, filepath.FromSlash(name)), content, 0o644)
}

func (s *LocalStore) Get(_ context.Context, runID, name string) ([]byte, error) {
	runID, name, err := normalize(runID, name)
	if err != nil {
		return nil, err
	}
	raw, err := s.fs.SafeReadFile(filepath.Join(runID, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *LocalStore) List(_ context.Context, runID string) ([]string, error) {
	runID, _, err := normalize(runID, "-")
	if err != nil {
		return nil, err
	}
	var out []string
	if err := s.walk(runID, "", &out); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *LocalStore) walk(dir, rel string, out *[]string) error {
	entries, err := s.fs.SafeReadDir(filepath.Join(dir, rel))
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := path.Join(rel, e.Name())
		if e.IsDir() {
			if err := s.walk(dir, name, out); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		*out = append(*out, name)
	}
	return nil
}
