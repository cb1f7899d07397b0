package crm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/habitatfuturo/habitat/internal/lead"
)

// LoadState reports how the store file was found on load.
type LoadState int

const (
	LoadOK LoadState = iota
	LoadMissing
	LoadCorrupt
)

func (s LoadState) String() string {
	switch s {
	case LoadMissing:
		return "missing"
	case LoadCorrupt:
		return "corrupt"
	default:
		return "ok"
	}
}

// Result is returned by Upsert.
type Result struct {
	MergeResult
	// Load tells whether existing data was read; on LoadCorrupt the store
	// was rebuilt from an empty collection.
	Load    LoadState
	LoadErr error
}

// Store is a CSV-backed lead store. Writers are serialized in process by a
// mutex and across processes by a lock file next to the store.
type Store struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for RegisteredAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens a store at path. The file is created on first write.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Load reads every record. A missing file yields LoadMissing and no error.
func (s *Store) Load() ([]Record, LoadState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, LoadMissing, nil
	}
	if err != nil {
		return nil, LoadCorrupt, fmt.Errorf("crm: read %s: %w", s.path, err)
	}
	records, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, LoadCorrupt, err
	}
	return records, LoadOK, nil
}

// Save replaces the store file with records.
func (s *Store) Save(records []Record) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("crm: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".leads-*.csv")
	if err != nil {
		return fmt.Errorf("crm: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("crm: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("crm: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("crm: replace %s: %w", s.path, err)
	}
	return nil
}

// acquire takes the cross-process lock. The lock file lives next to the
// store, so the directory is created first. Callers hold s.mu.
func (s *Store) acquire(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("crm: create dir: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("crm: lock store: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("crm: lock store: %s busy", s.path)
	}
	return func() { s.lock.Unlock() }, nil
}

// Upsert merges cand into the store on behalf of sessionID and persists
// the collection. A corrupt store is treated as empty and overwritten; the
// caller sees that through Result.Load.
func (s *Store) Upsert(ctx context.Context, cand lead.Candidate, sessionID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	records, state, loadErr := s.Load()
	if state == LoadCorrupt {
		records = nil
	}

	records, mr := Merge(records, cand, sessionID, s.now())
	res := Result{MergeResult: mr, Load: state, LoadErr: loadErr}

	if err := s.Save(records); err != nil {
		return res, err
	}
	return res, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	records, _, err := s.Load()
	return len(records), err
}

// Tail returns the last n records, oldest first.
func (s *Store) Tail(n int) ([]Record, error) {
	records, _, err := s.Load()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// Reset deletes the store file. It waits for writers in other processes.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("crm: reset: %w", err)
	}
	return nil
}
