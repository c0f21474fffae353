// Package artifact persists the files produced by a run.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var ErrNotFound = errors.New("artifact not found")

// Store keeps run outputs addressed by run ID and a relative path.
type Store interface {
	Put(ctx context.Context, runID, name string, content []byte) error
	Get(ctx context.Context, runID, name string) ([]byte, error)
	List(ctx context.Context, runID string) ([]string, error)
}

// normalize trims both parts and rejects keys that could leave the run prefix.
func normalize(runID, name string) (string, string, error) {
	runID = strings.TrimSpace(runID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if runID == "" {
		return "", "", fmt.Errorf("run_id is required")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", "", fmt.Errorf("invalid run_id %q", runID)
	}
	if name == "" {
		return "", "", fmt.Errorf("path is required")
	}
	clean := path.Clean(name)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", fmt.Errorf("invalid path %q", name)
	}
	return runID, clean, nil
}

func objectKey(runID, name string) string {
	return runID + "/" + name
}

// Tee writes to every store and reads from the first. A failed mirror write
// fails the Put.
type Tee struct {
	stores []Store
}

func NewTee(primary Store, mirrors ...Store) *Tee {
	return &Tee{stores: append([]Store{primary}, mirrors...)}
}

func (t *Tee) Put(ctx context.Context, runID, name string, content []byte) error {
	var errs []error
	for _, s := range t.stores {
		if err := s.Put(ctx, runID, name, content); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Tee) Get(ctx context.Context, runID, name string) ([]byte, error) {
	return t.stores[0].Get(ctx, runID, name)
}

func (t *Tee) List(ctx context.Context, runID string) ([]string, error) {
	return t.stores[0].List(ctx, runID)
}
