// Package memory persists analysis runs to a JSON array on disk. The file is
// shared between the agent and the dashboard, so every access goes through an
// advisory lock next to it.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/internal/types"
	"github.com/rafabd1/climatesense/pkg/logger"
)

var (
	// ErrNotFound is returned when the memory file does not exist.
	ErrNotFound = errors.New("memory file not found")
	// ErrNoEntries is returned when no entry matches a city.
	ErrNoEntries = errors.New("no entries for city")
)

// errMalformed marks a memory file that is not a JSON array.
var errMalformed = errors.New("memory file is not a JSON array")

const lockRetryDelay = 50 * time.Millisecond

type Store struct {
	path string
	// mu serializes access within the process; lock does it across processes.
	mu   sync.Mutex
	lock *flock.Flock
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (s *Store) Path() string {
	return s.path
}

// Append adds entry to the end of the log. A missing file is created; a file
// that is not a JSON array is replaced by a new log holding only entry.
// Earlier entries are carried over verbatim, including fields this package
// does not model.
func (s *Store) Append(ctx context.Context, entry types.LogEntry) error {
	log := logger.FromContext(ctx)
	encoded, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encode memory entry")
	}
	if err := s.acquire(ctx, false); err != nil {
		return err
	}
	defer s.release(ctx)

	entries, err := s.readRaw()
	switch {
	case errors.Is(err, ErrNotFound):
		entries = nil
	case errors.Is(err, errMalformed):
		log.Warn("Memory file was corrupted; starting a new log", "path", s.path, "error", err)
		entries = nil
	case err != nil:
		return err
	}
	entries = append(entries, encoded)

	if err := s.write(entries); err != nil {
		return err
	}
	log.Info("Saved run to memory", "path", s.path, "city", entry.City, "entries", len(entries))
	return nil
}

// Load returns every entry in file order.
func (s *Store) Load(ctx context.Context) ([]types.LogEntry, error) {
	if err := s.acquire(ctx, true); err != nil {
		return nil, err
	}
	defer s.release(ctx)
	return s.read()
}

// History returns the entries for city in file order, matching case-insensitively.
func (s *Store) History(ctx context.Context, city string) ([]types.LogEntry, error) {
	entries, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return FilterCity(entries, city), nil
}

// Latest returns the most recent entry for city by timestamp.
func (s *Store) Latest(ctx context.Context, city string) (*types.LogEntry, error) {
	history, err := s.History(ctx, city)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, errors.Wrapf(ErrNoEntries, "%q", city)
	}
	SortNewestFirst(history)
	return &history[0], nil
}

func FilterCity(entries []types.LogEntry, city string) []types.LogEntry {
	out := make([]types.LogEntry, 0, len(entries))
	for _, e := range entries {
		if types.SameCity(e.City, city) {
			out = append(out, e)
		}
	}
	return out
}

// SortNewestFirst orders entries by timestamp, newest first. Equal timestamps
// keep their file order reversed so later writes win.
func SortNewestFirst(entries []types.LogEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp.Time)
	})
}

func (s *Store) read() ([]types.LogEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	var entries []types.LogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.path)
	}
	return entries, nil
}

func (s *Store) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", s.path)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(errMalformed, "decode %s: %v", s.path, err)
	}
	return entries, nil
}

// write rewrites the file in place. The exclusive lock keeps readers out
// while it is truncated, and the file may be a single-file bind mount that
// cannot be renamed over.
func (s *Store) write(entries []json.RawMessage) error {
	if entries == nil {
		entries = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode memory log")
	}
	return writeFileInPlace(s.path, data)
}

func (s *Store) acquire(ctx context.Context, shared bool) error {
	s.mu.Lock()
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "lock %s", s.path)
	}
	if !ok {
		s.mu.Unlock()
		return errors.Errorf("could not lock %s", s.path)
	}
	return nil
}

func (s *Store) release(ctx context.Context) {
	defer s.mu.Unlock()
	if err := s.lock.Unlock(); err != nil {
		logger.FromContext(ctx).Warn("Failed to release memory lock", "path", s.path, "error", err)
	}
}

func writeFileInPlace(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "sync %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	return nil
}
