package artifact

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrNoLinks is returned by URL when the origin cannot presign downloads.
var ErrNoLinks = errors.New("artifact: origin does not provide download links")

type linker interface {
	URL(ctx context.Context, runID, name string, ttl time.Duration) (string, error)
}

type CacheConfig struct {
	BlobTTL        time.Duration
	BlobMaxEntries int

	ListTTL        time.Duration
	ListMaxEntries int

	URLTTL        time.Duration
	URLMaxEntries int
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		BlobTTL:        5 * time.Minute,
		BlobMaxEntries: 1024,
		ListTTL:        30 * time.Second,
		ListMaxEntries: 512,
		URLTTL:         5 * time.Minute,
		URLMaxEntries:  1024,
	}
}

type MetricsSnapshot struct {
	BlobHits       uint64 `json:"blob_hits"`
	BlobMisses     uint64 `json:"blob_misses"`
	ListHits       uint64 `json:"list_hits"`
	ListMisses     uint64 `json:"list_misses"`
	URLHits        uint64 `json:"url_hits"`
	URLMisses      uint64 `json:"url_misses"`
	OriginReads    uint64 `json:"origin_reads"`
	OriginWrites   uint64 `json:"origin_writes"`
	OriginReadErr  uint64 `json:"origin_read_err"`
	OriginWriteErr uint64 `json:"origin_write_err"`
}

type metrics struct {
	blobHits       atomic.Uint64
	blobMisses     atomic.Uint64
	listHits       atomic.Uint64
	listMisses     atomic.Uint64
	urlHits        atomic.Uint64
	urlMisses      atomic.Uint64
	originReads    atomic.Uint64
	originWrites   atomic.Uint64
	originReadErr  atomic.Uint64
	originWriteErr atomic.Uint64
}

// CachedStore is a write-through, read-through cache in front of a slow
// origin such as S3. Run artifacts never change once written, so blob
// entries only leave by TTL or LRU pressure.
type CachedStore struct {
	origin Store

	blobs   *expirable.LRU[string, []byte]
	lists   *expirable.LRU[string, []string]
	urls    *expirable.LRU[string, string]
	linkTTL time.Duration
	metrics metrics
}

func NewCachedStore(origin Store, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.BlobTTL <= 0 {
		cfg.BlobTTL = def.BlobTTL
	}
	if cfg.BlobMaxEntries <= 0 {
		cfg.BlobMaxEntries = def.BlobMaxEntries
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.ListMaxEntries <= 0 {
		cfg.ListMaxEntries = def.ListMaxEntries
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.URLMaxEntries <= 0 {
		cfg.URLMaxEntries = def.URLMaxEntries
	}
	return &CachedStore{
		origin:  origin,
		blobs:   expirable.NewLRU[string, []byte](cfg.BlobMaxEntries, nil, cfg.BlobTTL),
		lists:   expirable.NewLRU[string, []string](cfg.ListMaxEntries, nil, cfg.ListTTL),
		urls:    expirable.NewLRU[string, string](cfg.URLMaxEntries, nil, cfg.URLTTL),
		linkTTL: cfg.URLTTL,
	}
}

func (s *CachedStore) Put(ctx context.Context, runID, name string, content []byte) error {
	s.metrics.originWrites.Add(1)
	if err := s.origin.Put(ctx, runID, name, content); err != nil {
		s.metrics.originWriteErr.Add(1)
		return err
	}
	key := cacheKey(runID, name)
	s.blobs.Add(key, append([]byte(nil), content...))
	s.lists.Remove(strings.TrimSpace(runID))
	s.urls.Remove(key)
	return nil
}

func (s *CachedStore) Get(ctx context.Context, runID, name string) ([]byte, error) {
	key := cacheKey(runID, name)
	if raw, ok := s.blobs.Get(key); ok {
		s.metrics.blobHits.Add(1)
		return append([]byte(nil), raw...), nil
	}
	s.metrics.blobMisses.Add(1)
	s.metrics.originReads.Add(1)

	raw, err := s.origin.Get(ctx, runID, name)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	s.blobs.Add(key, append([]byte(nil), raw...))
	return raw, nil
}

func (s *CachedStore) List(ctx context.Context, runID string) ([]string, error) {
	runID = strings.TrimSpace(runID)
	if names, ok := s.lists.Get(runID); ok {
		s.metrics.listHits.Add(1)
		return append([]string(nil), names...), nil
	}
	s.metrics.listMisses.Add(1)
	s.metrics.originReads.Add(1)

	names, err := s.origin.List(ctx, runID)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return nil, err
	}
	s.lists.Add(runID, append([]string(nil), names...))
	return names, nil
}

// URL returns a presigned link from the origin. Cached links are handed out
// only while they stay valid for at least ttl more.
func (s *CachedStore) URL(ctx context.Context, runID, name string, ttl time.Duration) (string, error) {
	l, ok := s.origin.(linker)
	if !ok {
		return "", ErrNoLinks
	}
	key := cacheKey(runID, name)
	if u, ok := s.urls.Get(key); ok {
		s.metrics.urlHits.Add(1)
		return u, nil
	}
	s.metrics.urlMisses.Add(1)
	s.metrics.originReads.Add(1)

	// presign for longer than the cache keeps the link
	u, err := l.URL(ctx, runID, name, ttl+s.linkTTL)
	if err != nil {
		s.metrics.originReadErr.Add(1)
		return "", err
	}
	if strings.TrimSpace(u) != "" {
		s.urls.Add(key, u)
	}
	return u, nil
}

func (s *CachedStore) Metrics() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	m := &s.metrics
	return MetricsSnapshot{
		BlobHits:       m.blobHits.Load(),
		BlobMisses:     m.blobMisses.Load(),
		ListHits:       m.listHits.Load(),
		ListMisses:     m.listMisses.Load(),
		URLHits:        m.urlHits.Load(),
		URLMisses:      m.urlMisses.Load(),
		OriginReads:    m.originReads.Load(),
		OriginWrites:   m.originWrites.Load(),
		OriginReadErr:  m.originReadErr.Load(),
		OriginWriteErr: m.originWriteErr.Load(),
	}
}

func cacheKey(runID, name string) string {
	return strings.TrimSpace(runID) + "/" + strings.TrimLeft(strings.TrimSpace(name), "/")
}
