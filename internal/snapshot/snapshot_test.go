package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirAndList(t *testing.T) {
	nsRoot := t.TempDir()
	older := time.Date(2026, 8, 1, 2, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 15, 2, 0, 0, 0, time.UTC)

	for _, ts := range []time.Time{older, newer} {
		if _, err := Dir(nsRoot, "wiki", ts); err != nil {
			t.Fatalf("Dir: %v", err)
		}
	}
	// Stray entries must not be listed as snapshots.
	os.MkdirAll(filepath.Join(nsRoot, "wiki", "notes"), 0o755)
	os.WriteFile(filepath.Join(nsRoot, "wiki", "readme.txt"), []byte("x"), 0o644)

	dirs, err := List(nsRoot, "wiki")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("List = %v, want 2 entries", dirs)
	}
	if filepath.Base(dirs[0]) != newer.Format(TimestampLayout) {
		t.Errorf("first entry = %s, want newest", dirs[0])
	}
}

func TestListMissingInstance(t *testing.T) {
	dirs, err := List(t.TempDir(), "ghost")
	if err != nil || dirs != nil {
		t.Errorf("List on missing instance = %v, %v; want nil, nil", dirs, err)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := Meta{
		Instance:   "wiki",
		Namespace:  "services",
		Timestamp:  time.Date(2026, 8, 20, 2, 0, 0, 0, time.UTC),
		Strategies: []string{"mysql", "files"},
		Payloads:   []string{"wiki.sql.zst", "storage.tar.zst"},
	}
	if err := WriteMeta(dir, meta); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}

	got, ok, err := ReadMeta(dir)
	if err != nil || !ok {
		t.Fatalf("ReadMeta = %v, %v", ok, err)
	}
	if got.Instance != "wiki" || got.Namespace != "services" {
		t.Errorf("meta = %+v", got)
	}
	if len(got.Strategies) != 2 || got.Strategies[0] != "mysql" {
		t.Errorf("strategies = %v", got.Strategies)
	}
}

func TestReadMetaAbsent(t *testing.T) {
	_, ok, err := ReadMeta(t.TempDir())
	if err != nil || ok {
		t.Errorf("ReadMeta on bare dir = %v, %v; want false, nil", ok, err)
	}
}
