package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"coolify-backup/internal/archive"
)

// SQLiteArchiveName is the fixed payload name for embedded file-database
// archives; the retention carve-out and restore matching key off it.
const SQLiteArchiveName = "sqlite-data.tar.zst"

// SQLite archives the one embedded file-database volume of an instance by
// copying it out of the live container and compressing it. At most one such
// volume per instance is supported; the first manifest match wins.
type SQLite struct{}

func (SQLite) Kind() Kind { return KindSQLite }

func (SQLite) Probe(ctx context.Context, t *Target) (bool, error) {
	_, ok := t.Manifest.EmbeddedDBVolume()
	return ok, nil
}

func (SQLite) Execute(ctx context.Context, t *Target, outDir string) Result {
	var res Result

	ref, ok := t.Manifest.EmbeddedDBVolume()
	if !ok {
		res.Errs = append(res.Errs, fmt.Errorf("no embedded file-database volume in manifest for %s", t.Ref.ID))
		return res
	}

	name, running, err := findRunning(ctx, t, ref.Service)
	if err != nil {
		res.Errs = append(res.Errs, err)
		return res
	}
	if !running {
		res.Errs = append(res.Errs, fmt.Errorf("container for role %s is not running", ref.Service))
		return res
	}

	staging, err := os.MkdirTemp(outDir, ".staging-sqlite-*")
	if err != nil {
		res.Errs = append(res.Errs, fmt.Errorf("failed to create staging directory: %w", err))
		return res
	}
	defer os.RemoveAll(staging)

	if err := t.Docker.CopyFrom(ctx, name, ref.Volume.Path, staging); err != nil {
		res.Errs = append(res.Errs, err)
		return res
	}

	dest := filepath.Join(outDir, SQLiteArchiveName)
	if err := archive.TarDir(staging, dest); err != nil {
		res.Errs = append(res.Errs, err)
		return res
	}
	fmt.Printf("Archived embedded database %s from %s\n", ref.Volume.Path, name)
	res.Payloads = append(res.Payloads, dest)
	return res
}

// Apply extracts the archive and copies the database directory back into
// the owning container at its declared mount path.
func (SQLite) Apply(ctx context.Context, t *Target, snapDir string) error {
	ref, ok := t.Manifest.EmbeddedDBVolume()
	if !ok {
		return fmt.Errorf("no embedded file-database volume in manifest for %s", t.Ref.ID)
	}

	src := filepath.Join(snapDir, SQLiteArchiveName)
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("snapshot has no embedded-database archive: %w", err)
	}

	name, running, err := findRunning(ctx, t, ref.Service)
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("container for role %s is not running", ref.Service)
	}

	staging, err := os.MkdirTemp("", "coolify-restore-sqlite-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := archive.Extract(src, staging); err != nil {
		return err
	}

	// The archive holds the copied-out directory as its single top-level
	// entry; place it back over the mount point's parent.
	entries, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := t.Docker.CopyTo(ctx, name, filepath.Join(staging, entry.Name()), filepath.Dir(ref.Volume.Path)); err != nil {
			return err
		}
	}
	fmt.Printf("Restored embedded database into %s:%s\n", name, ref.Volume.Path)
	return nil
}
