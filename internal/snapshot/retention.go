package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sqliteArchiveName mirrors the embedded file-database payload name. That
// archive does not count as a "file backup" for the retention carve-out.
const sqliteArchiveName = "sqlite-data.tar.zst"

// Cleanup prunes expired snapshot directories under a namespace root with
// the <instance>/<timestamp> structure. Directories older than
// retentionDays are deleted wholesale, except that with skipIfFileBackup
// set, any snapshot containing a bulk-volume archive survives; those fall
// under the separately configured file-retention window.
func Cleanup(nsRoot string, retentionDays int, skipIfFileBackup bool) ([]string, error) {
	return cleanupAt(nsRoot, retentionDays, skipIfFileBackup, time.Now())
}

func cleanupAt(nsRoot string, retentionDays int, skipIfFileBackup bool, now time.Time) ([]string, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	instances, err := os.ReadDir(nsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", nsRoot, err)
	}

	var removed []string
	for _, inst := range instances {
		if !inst.IsDir() {
			continue
		}
		instDir := filepath.Join(nsRoot, inst.Name())
		snaps, err := os.ReadDir(instDir)
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", instDir, err)
		}
		for _, snap := range snaps {
			if !snap.IsDir() {
				continue
			}
			snapDir := filepath.Join(instDir, snap.Name())
			info, err := snap.Info()
			if err != nil {
				return removed, err
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if skipIfFileBackup {
				hasFiles, err := hasBulkArchive(snapDir)
				if err != nil {
					return removed, err
				}
				if hasFiles {
					continue
				}
			}
			if err := os.RemoveAll(snapDir); err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", snapDir, err)
			}
			removed = append(removed, snapDir)
		}
	}
	return removed, nil
}

// CleanupFlat prunes aged timestamp directories directly under root, the
// single-level shape of the setup and pre-restore trees.
func CleanupFlat(root string, retentionDays int) ([]string, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}
	var removed []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return removed, err
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", dir, err)
		}
		removed = append(removed, dir)
	}
	return removed, nil
}

// hasBulkArchive reports whether a snapshot contains at least one
// bulk-volume archive, detected by extension with the embedded
// file-database archive excluded.
func hasBulkArchive(snapDir string) (bool, error) {
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", snapDir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".tar.zst") {
			continue
		}
		if name == sqliteArchiveName {
			continue
		}
		return true, nil
	}
	return false, nil
}
