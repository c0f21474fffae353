package runstore

import (
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrNotFound = errors.New("runstore: run not found")

// Store keeps run records either in a JSON file or in Postgres.
type Store struct {
	path string
	db   *sql.DB

	loadOnce sync.Once
	loadErr  error
	mu       sync.RWMutex
	byID     map[string]Record

	schemaOnce sync.Once
	schemaErr  error

	recordCache *lru.Cache[string, Record]
}

// New returns a file backed store persisted at path.
func New(path string) *Store {
	return &Store{
		path: strings.TrimSpace(path),
		byID: make(map[string]Record),
	}
}

func NewPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, Record](1024)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, recordCache: cache}, nil
}

// Open prefers Postgres when dsn is set and reachable, otherwise it falls
// back to the JSON file at path.
func Open(dsn, path string) *Store {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return New(path)
	}
	s, err := NewPostgres(dsn)
	if err != nil {
		return New(path)
	}
	return s
}

func (s *Store) Backend() string {
	if s.db != nil {
		return "postgres"
	}
	return "file"
}

func (s *Store) Put(r Record) (Record, error) {
	r = normalizeRecord(r)
	if r.RunID == "" {
		return Record{}, errors.New("runstore: run id is required")
	}
	if s.db != nil {
		return r, s.putDB(r)
	}
	return r, s.putFile(r)
}

func (s *Store) Get(runID string) (Record, error) {
	id := strings.TrimSpace(runID)
	if id == "" {
		return Record{}, ErrNotFound
	}
	if s.db != nil {
		return s.getDB(id)
	}
	return s.getFile(id)
}

// List returns the newest records first, at most limit of them when limit > 0.
func (s *Store) List(limit int) ([]Record, error) {
	if s.db != nil {
		return s.listDB(limit)
	}
	return s.listFile(limit)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func sortNewestFirst(rows []Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].RunID < rows[j].RunID
	})
}
