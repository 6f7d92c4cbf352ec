package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestHashDeterministic(t *testing.T) {
	h1 := Hash([]byte("msgid \"Save\""))
	h2 := Hash([]byte("msgid \"Save\""))
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	if h1 == Hash([]byte("msgid \"Cancel\"")) {
		t.Errorf("Hash collision for different input")
	}
}

func TestLoadNonExistent(t *testing.T) {
	lf, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Checksums) != 0 || !lf.LastSync.IsZero() {
		t.Errorf("lock not empty: %+v", lf)
	}
	if lf.Summary() != "empty" {
		t.Errorf("Summary = %q, want empty", lf.Summary())
	}
}

func TestRecordChangedAndReload(t *testing.T) {
	dir := t.TempDir()
	cs := filepath.Join(dir, "locale", "cs", "LC_MESSAGES", "django.po")
	de := filepath.Join(dir, "locale", "de", "LC_MESSAGES", "django.po")
	writeFile(t, cs, "msgid \"Save\"\nmsgstr \"Uložit\"\n")
	writeFile(t, de, "msgid \"Save\"\nmsgstr \"\"\n")

	lf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	changed, err := lf.Changed([]string{cs, de})
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if len(changed) != 2 {
		t.Fatalf("new catalogs should be changed, got %v", changed)
	}

	if err := lf.Record([]string{cs, de}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	synced := time.Date(2026, 3, 1, 10, 30, 15, 500, time.UTC)
	lf.MarkSynced(synced)
	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	lf2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	want := []string{"locale/cs/LC_MESSAGES/django.po", "locale/de/LC_MESSAGES/django.po"}
	if got := lf2.Catalogs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Catalogs = %v, want %v", got, want)
	}
	if !lf2.LastSync.Equal(synced.Truncate(time.Second)) {
		t.Fatalf("LastSync = %v", lf2.LastSync)
	}
	if !strings.Contains(lf2.Summary(), "2 catalogs, last sync 2026-03-01T10:30:15Z") {
		t.Fatalf("Summary = %q", lf2.Summary())
	}

	writeFile(t, de, "msgid \"Save\"\nmsgstr \"Speichern\"\n")
	changed, err = lf2.Changed([]string{cs, de})
	if err != nil {
		t.Fatalf("Changed: %v", err)
	}
	if !reflect.DeepEqual(changed, []string{de}) {
		t.Fatalf("Changed = %v, want [%s]", changed, de)
	}

	if err := os.Remove(cs); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	changed, _ = lf2.Changed([]string{cs})
	if len(changed) != 1 {
		t.Fatalf("removed catalog should be changed, got %v", changed)
	}
	if err := lf2.Record([]string{cs}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := lf2.Catalogs(); !reflect.DeepEqual(got, want[1:]) {
		t.Fatalf("removed catalog still recorded: %v", got)
	}
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	lf, _ := Load(dir)
	lf.Checksums["locale/cs/LC_MESSAGES/django.po"] = "a"
	lf.Checksums["locale/xx/LC_MESSAGES/django.po"] = "b"

	lf.Clean([]string{filepath.Join(dir, "locale", "cs", "LC_MESSAGES", "django.po")})
	if got := lf.Catalogs(); !reflect.DeepEqual(got, []string{"locale/cs/LC_MESSAGES/django.po"}) {
		t.Fatalf("Catalogs after Clean = %v", got)
	}
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	g, err := Acquire(dir, time.Hour)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	holder, err := ReadHolder(dir)
	if err != nil {
		t.Fatalf("ReadHolder: %v", err)
	}
	if holder.PID != os.Getpid() {
		t.Fatalf("holder pid = %d, want %d", holder.PID, os.Getpid())
	}

	if _, err := Acquire(dir, time.Hour); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire = %v, want ErrLocked", err)
	}

	if err := g.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	g2, err := Acquire(dir, time.Hour)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	g2.Release()
}

func TestAcquireReplacesStaleMarker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, RunFileName), "pid: 1\nhost: builder\nsince: 2020-01-01T00:00:00Z\n")

	if _, err := Acquire(dir, 0); !errors.Is(err, ErrLocked) {
		t.Fatalf("Acquire without staleness = %v, want ErrLocked", err)
	}

	g, err := Acquire(dir, time.Hour)
	if err != nil {
		t.Fatalf("Acquire over stale marker: %v", err)
	}
	defer g.Release()
	holder, _ := ReadHolder(dir)
	if holder.PID != os.Getpid() {
		t.Fatalf("stale marker not replaced: %+v", holder)
	}
}
