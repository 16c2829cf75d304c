// Package snapshot owns the on-disk snapshot tree: directory layout,
// per-snapshot metadata and retention pruning. The layout is a restore
// compatibility contract and must not change shape:
//
//	<backup-root>/services/<instance>/<YYYYMMDD_HHMMSS>/...
//	<backup-root>/apps/<instance>/<YYYYMMDD_HHMMSS>/...
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// TimestampLayout names snapshot directories. Two runs against the same
// instance within the same second collide; operators serialize runs via the
// scheduler.
const TimestampLayout = "20060102_150405"

// MetaFile is the additive per-snapshot metadata document. Restore
// tolerates its absence so older trees stay restorable.
const MetaFile = "snapshot.yaml"

// EnvBackupName is the copied instance env file inside a snapshot.
const EnvBackupName = "env.backup"

// Meta records what one snapshot attempt produced.
type Meta struct {
	Instance   string    `yaml:"instance"`
	Namespace  string    `yaml:"namespace"`
	Timestamp  time.Time `yaml:"timestamp"`
	Strategies []string  `yaml:"strategies"`
	Payloads   []string  `yaml:"payloads"`
}

// WriteMeta persists the metadata document into dir.
func WriteMeta(dir string, meta Meta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}
	return nil
}

// ReadMeta loads the metadata document from dir. ok is false when the
// snapshot predates metadata.
func ReadMeta(dir string) (Meta, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Meta{}, false, nil
		}
		return Meta{}, false, fmt.Errorf("failed to read snapshot metadata: %w", err)
	}
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return Meta{}, false, fmt.Errorf("failed to parse snapshot metadata: %w", err)
	}
	return meta, true, nil
}

// Dir returns (and creates) the snapshot directory for one attempt.
func Dir(nsRoot, instanceID string, ts time.Time) (string, error) {
	dir := filepath.Join(nsRoot, instanceID, ts.Format(TimestampLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return dir, nil
}

// List returns the snapshot directories of one instance, newest first.
func List(nsRoot, instanceID string) ([]string, error) {
	base := filepath.Join(nsRoot, instanceID)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list snapshots for %s: %w", instanceID, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(TimestampLayout, e.Name()); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	dirs := make([]string, len(names))
	for i, n := range names {
		dirs[i] = filepath.Join(base, n)
	}
	return dirs, nil
}
