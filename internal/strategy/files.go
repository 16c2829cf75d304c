package strategy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"coolify-backup/internal/archive"
	"coolify-backup/internal/manifest"
)

// Files archives every bulk-storage volume of an instance, one archive per
// volume across possibly multiple service roles. Partial success counts as
// success; only zero archives is a failure.
type Files struct{}

func (Files) Kind() Kind { return KindFiles }

func (Files) Probe(ctx context.Context, t *Target) (bool, error) {
	return len(t.Manifest.BulkVolumes()) > 0, nil
}

func (Files) Execute(ctx context.Context, t *Target, outDir string) Result {
	var res Result

	refs := t.Manifest.BulkVolumes()
	if len(refs) == 0 {
		res.Errs = append(res.Errs, fmt.Errorf("no bulk-storage volumes in manifest for %s", t.Ref.ID))
		return res
	}

	containers := map[string]string{}
	used := map[string]bool{}
	for _, ref := range refs {
		name, ok := containers[ref.Service]
		if !ok {
			resolved, running, err := findRunning(ctx, t, ref.Service)
			if err != nil {
				res.Errs = append(res.Errs, err)
				continue
			}
			if !running {
				res.Errs = append(res.Errs, fmt.Errorf("volume %s: container for role %s is not running", ref.Volume.Name, ref.Service))
				continue
			}
			name = resolved
			containers[ref.Service] = name
		}

		label := uniqueLabel(ref.Volume, used)
		dest := filepath.Join(outDir, label+".tar.zst")
		if err := archiveVolume(ctx, t, name, ref.Volume.Path, outDir, dest); err != nil {
			fmt.Printf("Warning: file backup of %s from %s failed: %v\n", ref.Volume.Name, name, err)
			res.Errs = append(res.Errs, fmt.Errorf("volume %s: %w", ref.Volume.Name, err))
			continue
		}
		fmt.Printf("Archived volume %s (%s) from %s\n", ref.Volume.Name, label, name)
		res.Payloads = append(res.Payloads, dest)
	}
	return res
}

// Apply matches each bulk archive in the snapshot back to its declared
// volume by suffix and copies the contents into the owning container.
func (Files) Apply(ctx context.Context, t *Target, snapDir string) error {
	archives, err := filepath.Glob(filepath.Join(snapDir, "*.tar.zst"))
	if err != nil {
		return err
	}

	refs := t.Manifest.BulkVolumes()
	restored := 0
	for _, arc := range archives {
		base := filepath.Base(arc)
		if base == SQLiteArchiveName {
			continue
		}
		label := strings.TrimSuffix(base, ".tar.zst")

		ref, ok := volumeForLabel(refs, label)
		if !ok {
			fmt.Printf("Warning: no declared volume matches archive %s, skipping\n", base)
			continue
		}

		name, running, err := findRunning(ctx, t, ref.Service)
		if err != nil {
			return err
		}
		if !running {
			return fmt.Errorf("container for role %s is not running", ref.Service)
		}

		staging, err := os.MkdirTemp("", "coolify-restore-files-*")
		if err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		if err := archive.Extract(arc, staging); err != nil {
			os.RemoveAll(staging)
			return err
		}
		entries, err := os.ReadDir(staging)
		if err != nil {
			os.RemoveAll(staging)
			return err
		}
		for _, entry := range entries {
			if err := t.Docker.CopyTo(ctx, name, filepath.Join(staging, entry.Name()), filepath.Dir(ref.Volume.Path)); err != nil {
				os.RemoveAll(staging)
				return err
			}
		}
		os.RemoveAll(staging)
		fmt.Printf("Restored volume %s into %s:%s\n", ref.Volume.Name, name, ref.Volume.Path)
		restored++
	}

	if restored == 0 {
		return fmt.Errorf("snapshot %s contains no restorable file archives", snapDir)
	}
	return nil
}

func archiveVolume(ctx context.Context, t *Target, container, srcPath, outDir, dest string) error {
	staging, err := os.MkdirTemp(outDir, ".staging-files-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := t.Docker.CopyFrom(ctx, container, srcPath, staging); err != nil {
		return err
	}
	return archive.TarDir(staging, dest)
}

// uniqueLabel derives the archive name from the volume suffix, keeping
// names distinct when two volumes share a suffix.
func uniqueLabel(v manifest.Volume, used map[string]bool) string {
	label := v.Suffix()
	if label == "" {
		label = "volume"
	}
	candidate := label
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d", label, i)
	}
	used[candidate] = true
	return candidate
}

func volumeForLabel(refs []manifest.VolumeRef, label string) (manifest.VolumeRef, bool) {
	for _, ref := range refs {
		if ref.Volume.Suffix() == label {
			return ref, true
		}
	}
	// Collision-renamed archives ("storage-2") fall back to the base label.
	if idx := strings.LastIndex(label, "-"); idx > 0 {
		base := label[:idx]
		for _, ref := range refs {
			if ref.Volume.Suffix() == base {
				return ref, true
			}
		}
	}
	return manifest.VolumeRef{}, false
}
