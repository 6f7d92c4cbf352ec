// Package settings manages catsync's user data directory, which holds the
// API keys for translation platforms.
//
// Keys are stored in $XDG_DATA_HOME/catsync/auth.json (by default
// ~/.local/share/catsync/auth.json) with 0600 permissions, keyed by the
// platform URL.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dataDirName = "catsync"
	fileName    = "auth.json"

	// EnvKey overrides the stored key for every platform.
	EnvKey = "CATSYNC_PLATFORM_KEY"
)

// Info is a stored platform credential.
type Info struct {
	Key  string `json:"key"`
	User string `json:"user,omitempty"`
}

// Store maps a normalized platform URL to its credential.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the path to auth.json, or "" if it cannot be determined.
func FilePath() string {
	p, _ := filePath()
	return p
}

// DataDir returns the catsync data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// NormalizeURL lowercases a platform URL and strips trailing slashes and
// the /api suffix, so "https://hosted.weblate.org/api/" and
// "https://hosted.weblate.org" share one entry.
func NormalizeURL(url string) string {
	url = strings.TrimSpace(strings.ToLower(url))
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/api")
	return strings.TrimRight(url, "/")
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the credential for a platform, or nil if not found.
func Get(url string) *Info {
	return Load()[NormalizeURL(url)]
}

// Set stores the credential for a platform (upsert).
func Set(url string, info *Info) error {
	if strings.TrimSpace(info.Key) == "" {
		return fmt.Errorf("empty key for %s", url)
	}
	store := Load()
	store[NormalizeURL(url)] = info
	return Save(store)
}

// Remove deletes the credential for a platform. Removing an unknown
// platform is not an error.
func Remove(url string) error {
	store := Load()
	key := NormalizeURL(url)
	if _, ok := store[key]; !ok {
		return nil
	}
	delete(store, key)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// Platforms returns the stored platform URLs in sorted order.
func Platforms() []string {
	store := Load()
	urls := make([]string, 0, len(store))
	for url := range store {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Source tells where a resolved key came from.
type Source string

const (
	SourceFlag  Source = "flag"
	SourceEnv   Source = "env"
	SourceStore Source = "store"
	SourceNone  Source = ""
)

// ResolveKey returns the API key for the platform at url. An explicit flag
// value wins over $CATSYNC_PLATFORM_KEY, which wins over the stored key.
func ResolveKey(flag, url string) (string, Source) {
	if flag != "" {
		return flag, SourceFlag
	}
	if env := os.Getenv(EnvKey); env != "" {
		return env, SourceEnv
	}
	if info := Get(url); info != nil && info.Key != "" {
		return info.Key, SourceStore
	}
	return "", SourceNone
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
