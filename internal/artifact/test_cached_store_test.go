package artifact

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeOrigin struct {
	mu sync.Mutex

	data map[string][]byte

	getCalls  int
	putCalls  int
	listCalls int
	urlCalls  int

	failPut bool
}

func newFakeOrigin() *fakeOrigin {
	return &fakeOrigin{data: map[string][]byte{}}
}

func (s *fakeOrigin) Put(_ context.Context, runID, name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCalls++
	if s.failPut {
		return fmt.Errorf("put failed")
	}
	s.data[runID+"/"+name] = append([]byte(nil), content...)
	return nil
}

func (s *fakeOrigin) Get(_ context.Context, runID, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	raw, ok := s.data[runID+"/"+name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *fakeOrigin) List(_ context.Context, runID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]string, 0, 8)
	prefix := runID + "/"
	for k := range s.data {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, k[len(prefix):])
		}
	}
	return out, nil
}

type fakeLinkingOrigin struct {
	*fakeOrigin
}

func (s fakeLinkingOrigin) URL(_ context.Context, runID, name string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlCalls++
	return fmt.Sprintf("https://example/%s/%s?ttl=%s", runID, name, ttl), nil
}

func TestCachedStoreReadThroughAndMetrics(t *testing.T) {
	origin := newFakeOrigin()
	origin.data["r1/keyframes.json"] = []byte("[]")
	store := NewCachedStore(origin, DefaultCacheConfig())

	for i := 0; i < 2; i++ {
		got, err := store.Get(context.Background(), "r1", "keyframes.json")
		if err != nil {
			t.Fatalf("get %d failed: %v", i, err)
		}
		if string(got) != "[]" {
			t.Fatalf("unexpected content: %q", got)
		}
	}
	if origin.getCalls != 1 {
		t.Fatalf("expected one origin get call, got %d", origin.getCalls)
	}
	m := store.Metrics()
	if m.BlobHits != 1 || m.BlobMisses != 1 || m.OriginReads != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if _, err := store.Get(context.Background(), "r1", "absent.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedStoreWriteThrough(t *testing.T) {
	origin := newFakeOrigin()
	store := NewCachedStore(origin, DefaultCacheConfig())

	if err := store.Put(context.Background(), "r1", "a.json", []byte("new")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := store.Get(context.Background(), "r1", "a.json")
	if err != nil || string(got) != "new" {
		t.Fatalf("get after put: %q %v", got, err)
	}
	if origin.getCalls != 0 {
		t.Fatalf("expected get served from cache, origin saw %d", origin.getCalls)
	}

	origin.failPut = true
	if err := store.Put(context.Background(), "r1", "b.json", []byte("bad")); err == nil {
		t.Fatalf("expected put error")
	}
	if _, err := store.Get(context.Background(), "r1", "b.json"); err == nil {
		t.Fatalf("expected miss for failed write")
	}
}

func TestCachedStoreLRUAndTTL(t *testing.T) {
	origin := newFakeOrigin()
	origin.data["r1/a.json"] = []byte("A")
	origin.data["r1/b.json"] = []byte("B")

	store := NewCachedStore(origin, CacheConfig{BlobTTL: time.Minute, BlobMaxEntries: 1})
	for _, name := range []string{"a.json", "b.json", "a.json"} {
		if _, err := store.Get(context.Background(), "r1", name); err != nil {
			t.Fatalf("get %s failed: %v", name, err)
		}
	}
	if origin.getCalls != 3 {
		t.Fatalf("expected 3 origin get calls with LRU eviction, got %d", origin.getCalls)
	}

	origin.getCalls = 0
	short := NewCachedStore(origin, CacheConfig{BlobTTL: 10 * time.Millisecond, BlobMaxEntries: 8})
	if _, err := short.Get(context.Background(), "r1", "a.json"); err != nil {
		t.Fatalf("ttl get first failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := short.Get(context.Background(), "r1", "a.json"); err != nil {
		t.Fatalf("ttl get second failed: %v", err)
	}
	if origin.getCalls != 2 {
		t.Fatalf("expected 2 origin reads after ttl expiry, got %d", origin.getCalls)
	}
}

func TestCachedStoreListAndURL(t *testing.T) {
	origin := newFakeOrigin()
	origin.data["run-1/p1"] = []byte("x")
	origin.data["run-1/p2"] = []byte("y")

	plain := NewCachedStore(origin, DefaultCacheConfig())
	l1, err := plain.List(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("list1 failed: %v", err)
	}
	l2, err := plain.List(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("list2 failed: %v", err)
	}
	if !reflect.DeepEqual(l1, l2) || origin.listCalls != 1 {
		t.Fatalf("list not cached: %v %v calls=%d", l1, l2, origin.listCalls)
	}
	if err := plain.Put(context.Background(), "run-1", "p3", []byte("z")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	l3, _ := plain.List(context.Background(), "run-1")
	if len(l3) != 3 {
		t.Fatalf("expected list invalidated after put, got %v", l3)
	}
	if _, err := plain.URL(context.Background(), "run-1", "p1", time.Minute); !errors.Is(err, ErrNoLinks) {
		t.Fatalf("expected ErrNoLinks, got %v", err)
	}

	linked := NewCachedStore(fakeLinkingOrigin{origin}, DefaultCacheConfig())
	u1, err := linked.URL(context.Background(), "run-1", "p1", time.Minute)
	if err != nil {
		t.Fatalf("url1 failed: %v", err)
	}
	u2, _ := linked.URL(context.Background(), "run-1", "p1", time.Minute)
	if u1 != u2 || origin.urlCalls != 1 {
		t.Fatalf("url not cached: %q %q calls=%d", u1, u2, origin.urlCalls)
	}
}
