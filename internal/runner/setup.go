package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coolify-backup/internal/archive"
	"coolify-backup/internal/dockerx"
	"coolify-backup/internal/envfile"
	"coolify-backup/internal/snapshot"
)

// SetupContainer is the platform's own database container.
const SetupContainer = "coolify-db"

const (
	setupDumpName    = "coolify-db.sql.zst"
	setupArchiveName = "coolify-data.tar.zst"
	setupManifest    = "manifest.txt"
)

// RunSetup snapshots the PaaS layer itself: a dump of the platform
// database container plus an archive of the platform data directory,
// written under coolify-setup/<timestamp>/.
func (r *Runner) RunSetup(ctx context.Context) error {
	ts := r.now()
	dir := filepath.Join(r.Cfg.SetupBackupDir(), ts.Format(snapshot.TimestampLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create setup snapshot directory: %w", err)
	}

	status, err := r.Docker.Status(ctx, SetupContainer)
	if err != nil {
		return err
	}
	if status != dockerx.StatusRunning {
		return fmt.Errorf("container %s is %s, cannot back up platform database", SetupContainer, status)
	}

	user, password, db := SetupCredentials(r.Cfg.CoolifyRoot)

	fmt.Printf("Dumping platform database %s from %s...\n", db, SetupContainer)
	dumpPath := filepath.Join(dir, setupDumpName)
	w, err := archive.NewZstWriter(dumpPath)
	if err != nil {
		return err
	}
	dumpErr := r.Docker.Output(ctx, SetupContainer, []string{"PGPASSWORD=" + password}, w,
		"pg_dump", "-U", user, db)
	if closeErr := w.Close(); dumpErr == nil {
		dumpErr = closeErr
	}
	if dumpErr != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("platform database dump failed: %w", dumpErr)
	}

	fmt.Printf("Archiving platform data directory %s...\n", r.Cfg.CoolifyRoot)
	dataPath := filepath.Join(dir, setupArchiveName)
	backupRel := relOrEmpty(r.Cfg.CoolifyRoot, r.Cfg.BackupRoot)
	err = archive.TarDirFiltered(r.Cfg.CoolifyRoot, dataPath, func(rel string) bool {
		// The per-instance data trees are covered by regular snapshots, and
		// a backup root nested under the platform dir must not recurse.
		if rel == "services" || rel == "applications" {
			return true
		}
		return backupRel != "" && rel == backupRel
	})
	if err != nil {
		os.RemoveAll(dir)
		return err
	}

	manifestText := fmt.Sprintf(
		"coolify setup backup\ncreated: %s\ndatabase: %s (%s)\npayloads:\n  %s\n  %s\n",
		ts.Format(time.RFC3339), db, SetupContainer, setupDumpName, setupArchiveName)
	if err := os.WriteFile(filepath.Join(dir, setupManifest), []byte(manifestText), 0o644); err != nil {
		return fmt.Errorf("failed to write setup manifest: %w", err)
	}

	fmt.Printf("Setup snapshot complete: %s\n", dir)
	return nil
}

// SetupCredentials resolves the platform database credentials from the
// platform's own env file, with conventional defaults.
func SetupCredentials(coolifyRoot string) (user, password, db string) {
	env, err := envfile.Read(filepath.Join(coolifyRoot, "source", ".env"))
	if err != nil {
		env = map[string]string{}
	}
	user, _ = envfile.FirstPresent(env, "DB_USERNAME", "POSTGRES_USER")
	password, _ = envfile.FirstPresent(env, "DB_PASSWORD", "POSTGRES_PASSWORD")
	db, _ = envfile.FirstPresent(env, "DB_DATABASE", "POSTGRES_DB")
	if user == "" {
		user = "coolify"
	}
	if db == "" {
		db = "coolify"
	}
	return user, password, db
}

func relOrEmpty(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}
