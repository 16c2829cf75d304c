package remote

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"coolify-backup/internal/config"
)

func TestNewDisabledWithoutConfig(t *testing.T) {
	syncer, err := New(&config.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if syncer != nil {
		t.Errorf("syncer = %#v, want nil for disabled sync", syncer)
	}
}

func TestNewRsyncBackend(t *testing.T) {
	syncer, err := New(&config.Config{RemoteBackend: "rsync", RsyncTarget: "backup@mirror:/srv"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rs, ok := syncer.(*RsyncSyncer)
	if !ok || rs.Target != "backup@mirror:/srv" {
		t.Errorf("syncer = %#v", syncer)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New(&config.Config{RemoteBackend: "tape"}); err == nil {
		t.Error("New accepted an unknown backend")
	}
}

func TestMinioObjectNamePrefix(t *testing.T) {
	s := &MinioSyncer{prefix: "host-a/backups"}
	if got := s.objectName("services/wiki/x.sql.zst"); got != "host-a/backups/services/wiki/x.sql.zst" {
		t.Errorf("objectName = %q", got)
	}
	s = &MinioSyncer{}
	if got := s.objectName("services/wiki/x.sql.zst"); got != "services/wiki/x.sql.zst" {
		t.Errorf("objectName without prefix = %q", got)
	}
}

func TestWalkUploadRelativeSlashPaths(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"services/wiki/20260825_020000/wiki.sql.zst", "apps/blog/20260825_020000/env.backup"} {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var seen []string
	err := walkUpload(root, func(rel, abs string) error {
		seen = append(seen, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("walkUpload: %v", err)
	}
	sort.Strings(seen)

	want := []string{
		"apps/blog/20260825_020000/env.backup",
		"services/wiki/20260825_020000/wiki.sql.zst",
	}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen = %v, want %v", seen, want)
			break
		}
	}
}
