// Package control reads and writes control_file.json, the file through which
// the dashboard tells the agent which location to monitor.
package control

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/rafabd1/climatesense/pkg/logger"
)

var (
	// ErrNotFound is returned when the control file does not exist.
	ErrNotFound = errors.New("control file not found")
	// ErrInvalid is returned when the control file holds no usable location.
	ErrInvalid = errors.New("control file has no valid location")
)

type document struct {
	Location string `json:"location"`
}

type File struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

func NewFile(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

// Read returns the stored location. A missing file yields ErrNotFound and a
// file without a usable location yields ErrInvalid; lock and I/O failures are
// returned as they are.
func (f *File) Read(ctx context.Context) (string, error) {
	if !f.Exists() {
		return "", errors.Wrap(ErrNotFound, f.path)
	}
	if err := f.acquire(ctx, true); err != nil {
		return "", err
	}
	defer f.release()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.Wrap(ErrNotFound, f.path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %s", f.path)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", errors.Wrapf(ErrInvalid, "decode %s: %v", f.path, err)
	}
	loc := strings.TrimSpace(doc.Location)
	if loc == "" {
		return "", errors.Wrapf(ErrInvalid, "%s has no location", f.path)
	}
	return loc, nil
}

// Location returns the stored location, or def when there is none.
func (f *File) Location(ctx context.Context, def string) string {
	log := logger.FromContext(ctx)
	if !f.Exists() {
		log.Info("Control file not found; using default location", "path", f.path, "location", def)
		return def
	}
	loc, err := f.Read(ctx)
	if err != nil {
		log.Warn("Error reading control file; using default location", "error", err, "location", def)
		return def
	}
	return loc
}

// SetLocation replaces the stored location.
func (f *File) SetLocation(ctx context.Context, location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return errors.New("location cannot be empty")
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	if err := f.acquire(ctx, false); err != nil {
		return err
	}
	defer f.release()

	data, err := json.Marshal(document{Location: location})
	if err != nil {
		return errors.Wrap(err, "encode control file")
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", f.path)
	}
	logger.FromContext(ctx).Info("Control file updated", "path", f.path, "location", location)
	return nil
}

func (f *File) acquire(ctx context.Context, shared bool) error {
	f.mu.Lock()
	lockFn := f.lock.TryLockContext
	if shared {
		lockFn = f.lock.TryRLockContext
	}
	ok, err := lockFn(ctx, 50*time.Millisecond)
	if err != nil || !ok {
		f.mu.Unlock()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return errors.Wrapf(err, "lock %s", f.path)
	}
	return nil
}

func (f *File) release() {
	_ = f.lock.Unlock()
	f.mu.Unlock()
}
