// Package disk persists computed results under a directory with LRU and TTL
// eviction. An index file records sizes and access times so a restarted
// process keeps its warm entries.
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"melodypath/internal/safeio"
)

type Config struct {
	Root       string
	MaxEntries int
	// MaxBytes bounds the summed payload size; zero means unbounded.
	MaxBytes int64
	TTL      time.Duration
}

func DefaultConfig(root string) Config {
	return Config{Root: root, MaxEntries: 512, MaxBytes: 256 << 20, TTL: 24 * time.Hour}
}

type entry struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	ExpiresAt  time.Time `json:"expires_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

type index struct {
	Entries map[string]entry `json:"entries"`
}

const (
	indexFile = "index.json"
	dataDir   = "data"
)

// Store is safe for concurrent use within one process.
type Store struct {
	mu sync.Mutex
	fs *safeio.SafeFS

	maxEntries int
	maxBytes   int64
	ttl        time.Duration
	now        func() time.Time

	totalBytes int64
	entries    map[string]entry
}

func New(cfg Config) (*Store, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, errors.New("disk: root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, dataDir), 0o755); err != nil {
		return nil, fmt.Errorf("disk: %w", err)
	}
	fsys, err := safeio.NewSafeFS(root)
	if err != nil {
		return nil, fmt.Errorf("disk: %w", err)
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}

	s := &Store{
		fs:         fsys,
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		ttl:        cfg.TTL,
		now:        time.Now,
		entries:    map[string]entry{},
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(s.now())
	return s, s.persistIndexLocked()
}

// Get returns the bytes stored under key. A miss is (nil, false, nil).
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, errors.New("disk: key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ent, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if now.After(ent.ExpiresAt) {
		s.removeLocked(key, ent)
		_ = s.persistIndexLocked()
		return nil, false, nil
	}
	raw, err := s.fs.SafeReadFile(filepath.Join(dataDir, ent.File))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.removeLocked(key, ent)
			_ = s.persistIndexLocked()
			return nil, false, nil
		}
		return nil, false, err
	}
	ent.AccessedAt = now
	s.entries[key] = ent
	if err := s.persistIndexLocked(); err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("disk: key is required")
	}
	file := hashedName(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.SafeWriteFile(filepath.Join(dataDir, file), value, 0o644); err != nil {
		return err
	}
	if old, ok := s.entries[key]; ok {
		s.totalBytes -= old.Size
	}
	now := s.now()
	s.entries[key] = entry{
		File:       file,
		Size:       int64(len(value)),
		ExpiresAt:  now.Add(s.ttl),
		AccessedAt: now,
	}
	s.totalBytes += int64(len(value))
	s.evictLocked(now)
	return s.persistIndexLocked()
}

// GetJSON decodes the value under key into v.
func (s *Store) GetJSON(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		// a corrupt entry is a miss
		_ = s.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

func (s *Store) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("disk: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

func (s *Store) Delete(_ context.Context, key string) error {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ent, ok := s.entries[key]; ok {
		s.removeLocked(key, ent)
		return s.persistIndexLocked()
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) loadIndex() error {
	raw, err := s.fs.SafeReadFile(indexFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return fmt.Errorf("disk: corrupt index: %w", err)
	}
	for key, ent := range idx.Entries {
		if _, err := s.fs.SafeStat(filepath.Join(dataDir, ent.File)); err != nil {
			continue
		}
		s.entries[key] = ent
		s.totalBytes += ent.Size
	}
	return nil
}

func (s *Store) evictLocked(now time.Time) {
	for key, ent := range s.entries {
		if now.After(ent.ExpiresAt) {
			s.removeLocked(key, ent)
		}
	}
	for len(s.entries) > 0 && (len(s.entries) > s.maxEntries || (s.maxBytes > 0 && s.totalBytes > s.maxBytes)) {
		key := s.oldestLocked()
		s.removeLocked(key, s.entries[key])
	}
}

func (s *Store) oldestLocked() string {
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := s.entries[keys[i]].AccessedAt, s.entries[keys[j]].AccessedAt
		if li.Equal(lj) {
			return keys[i] < keys[j]
		}
		return li.Before(lj)
	})
	return keys[0]
}

func (s *Store) removeLocked(key string, ent entry) {
	delete(s.entries, key)
	s.totalBytes = max(s.totalBytes-ent.Size, 0)
	_ = s.fs.SafeRemove(filepath.Join(dataDir, ent.File))
}

func (s *Store) persistIndexLocked() error {
	raw, err := json.MarshalIndent(index{Entries: s.entries}, "", "  ")
	if err != nil {
		return err
	}
	return s.fs.SafeWriteFile(indexFile, raw, 0o644)
}

func hashedName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + ".json"
}
