package runstore

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"melodypath/internal/safeio"
)

func (s *Store) fileFS() (*safeio.SafeFS, string, error) {
	dir := filepath.Dir(s.path)
	fsys, err := safeio.NewSafeFS(dir)
	if err != nil {
		return nil, "", err
	}
	return fsys, filepath.Base(s.path), nil
}

func (s *Store) ensureLoadedFile() error {
	s.loadOnce.Do(func() {
		if s.path == "" {
			return
		}
		fsys, name, err := s.fileFS()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return
			}
			s.loadErr = err
			return
		}
		b, err := fsys.SafeReadFile(name)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.loadErr = err
			}
			return
		}
		var rows []Record
		if err := json.Unmarshal(b, &rows); err != nil {
			s.loadErr = err
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, row := range rows {
			row = normalizeRecord(row)
			if row.RunID == "" {
				continue
			}
			s.byID[row.RunID] = row
		}
	})
	return s.loadErr
}

// saveFileLocked rewrites the whole file. Callers hold s.mu.
func (s *Store) saveFileLocked() error {
	if s.path == "" {
		return nil
	}
	rows := make([]Record, 0, len(s.byID))
	for _, r := range s.byID {
		rows = append(rows, r)
	}
	sortNewestFirst(rows)
	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	fsys, name, err := s.fileFS()
	if err != nil {
		return err
	}
	return fsys.SafeWriteFile(name, b, 0o644)
}

func (s *Store) putFile(r Record) error {
	if err := s.ensureLoadedFile(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[r.RunID] = r
	return s.saveFileLocked()
}

func (s *Store) getFile(id string) (Record, error) {
	if err := s.ensureLoadedFile(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	r, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (s *Store) listFile(limit int) ([]Record, error) {
	if err := s.ensureLoadedFile(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Record, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
