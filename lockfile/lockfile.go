// Package lockfile implements catsync.lock, which records a checksum of
// every catalog as of the last completed sync. It tells which catalogs
// changed since then, so a sync can report what it is about to commit.
//
// The package also provides the run marker that keeps two syncs from
// running at the same time in one checkout.
package lockfile

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the lock file name, stored next to .catsync.yaml.
const FileName = "catsync.lock"

// Version is the lock file format version.
const Version = 1

// LockFile represents the catsync.lock file structure.
type LockFile struct {
	Version  int       `yaml:"version"`
	LastSync time.Time `yaml:"last_sync,omitempty"`
	// Checksums maps catalog paths relative to the root to MD5 digests.
	Checksums map[string]string `yaml:"checksums"`

	mu   sync.Mutex
	root string
	path string
}

// Load reads the lock file from dir. A missing file yields an empty lock.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, FileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, lf); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if lf.Checksums == nil {
		lf.Checksums = make(map[string]string)
	}
	lf.root = dir
	lf.path = path
	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return errors.New("lock file path not set")
	}
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// Hash computes the MD5 hex digest of data.
func Hash(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}

// key turns a catalog path into its slash-separated root-relative key.
func (lf *LockFile) key(path string) string {
	if rel, err := filepath.Rel(lf.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		path = rel
	}
	return filepath.ToSlash(path)
}

// Changed returns the paths whose content differs from the recorded
// checksum, including files that are new or were removed since.
func (lf *LockFile) Changed(paths []string) ([]string, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	var changed []string
	for _, p := range paths {
		old, known := lf.Checksums[lf.key(p)]
		data, err := os.ReadFile(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if known {
				changed = append(changed, p)
			}
		case err != nil:
			return nil, err
		case !known || old != Hash(data):
			changed = append(changed, p)
		}
	}
	return changed, nil
}

// Record stores the current checksum of paths. Paths that no longer exist
// are forgotten.
func (lf *LockFile) Record(paths []string) error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			delete(lf.Checksums, lf.key(p))
			continue
		}
		if err != nil {
			return err
		}
		lf.Checksums[lf.key(p)] = Hash(data)
	}
	return nil
}

// Clean removes checksums of catalogs that are not in current.
func (lf *LockFile) Clean(current []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	valid := make(map[string]bool, len(current))
	for _, p := range current {
		valid[lf.key(p)] = true
	}
	for k := range lf.Checksums {
		if !valid[k] {
			delete(lf.Checksums, k)
		}
	}
}

// MarkSynced records the time of a completed sync.
func (lf *LockFile) MarkSynced(t time.Time) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.LastSync = t.UTC().Truncate(time.Second)
}

// Catalogs returns the sorted list of recorded catalog keys.
func (lf *LockFile) Catalogs() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys := make([]string, 0, len(lf.Checksums))
	for k := range lf.Checksums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	n := len(lf.Catalogs())
	if n == 0 {
		return "empty"
	}
	if lf.LastSync.IsZero() {
		return fmt.Sprintf("%d catalogs, never synced", n)
	}
	return fmt.Sprintf("%d catalogs, last sync %s", n, lf.LastSync.Format(time.RFC3339))
}

// RunFileName is the marker present while a sync runs.
const RunFileName = FileName + ".run"

// ErrLocked is returned by Acquire when another sync holds the marker.
var ErrLocked = errors.New("another sync is running")

// Holder describes the process holding the run marker.
type Holder struct {
	PID   int       `yaml:"pid"`
	Host  string    `yaml:"host"`
	Since time.Time `yaml:"since"`
}

// Guard is a held run marker.
type Guard struct {
	path string
}

// Acquire creates the run marker in dir. A marker older than staleAfter is
// considered abandoned and replaced; staleAfter <= 0 never replaces one.
func Acquire(dir string, staleAfter time.Duration) (*Guard, error) {
	path := filepath.Join(dir, RunFileName)
	host, _ := os.Hostname()
	data, err := yaml.Marshal(Holder{PID: os.Getpid(), Host: host, Since: time.Now().UTC().Truncate(time.Second)})
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := f.Write(data)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("writing %s: %w", path, werr)
			}
			return &Guard{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}

		holder, herr := ReadHolder(dir)
		if herr != nil || staleAfter <= 0 || time.Since(holder.Since) < staleAfter {
			if herr == nil {
				return nil, fmt.Errorf("%w (pid %d on %s since %s)", ErrLocked, holder.PID, holder.Host, holder.Since.Format(time.RFC3339))
			}
			return nil, ErrLocked
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, ErrLocked
}

// ReadHolder reads the run marker in dir.
func ReadHolder(dir string) (Holder, error) {
	var h Holder
	data, err := os.ReadFile(filepath.Join(dir, RunFileName))
	if err != nil {
		return h, err
	}
	err = yaml.Unmarshal(data, &h)
	return h, err
}

// Release removes the run marker.
func (g *Guard) Release() error {
	if err := os.Remove(g.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
