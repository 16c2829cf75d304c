package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"coolify-backup/internal/archive"
	"coolify-backup/internal/dockerx"
	"coolify-backup/internal/runner"
	"coolify-backup/internal/snapshot"
)

const (
	setupDumpName    = "coolify-db.sql.zst"
	setupArchiveName = "coolify-data.tar.zst"
)

// runSetup restores a platform setup snapshot: the platform database is
// dropped and recreated from the dump, and the platform data directory is
// overlaid from the archive. Instance data under services/ and applications/
// is untouched.
func (o *Orchestrator) runSetup(ctx context.Context, opts Options) error {
	snapDir, err := o.selectSetupSnapshot(opts)
	if err != nil {
		return err
	}

	dumpPath := filepath.Join(snapDir, setupDumpName)
	archivePath := filepath.Join(snapDir, setupArchiveName)
	for _, p := range []string{dumpPath, archivePath} {
		if err := archive.Verify(p); err != nil {
			return fmt.Errorf("setup snapshot validation failed: %w", err)
		}
	}
	fmt.Printf("Validated setup snapshot %s\n", snapDir)

	if opts.DryRun {
		fmt.Println("[DRY RUN] Setup restore plan:")
		fmt.Printf("[DRY RUN]   snapshot: %s\n", snapDir)
		fmt.Printf("[DRY RUN]   would recreate platform database from %s\n", setupDumpName)
		fmt.Printf("[DRY RUN]   would overlay %s from %s\n", o.Cfg.CoolifyRoot, setupArchiveName)
		fmt.Println("[DRY RUN] No changes made.")
		return nil
	}

	if !opts.Yes {
		ok, err := o.confirmFn(fmt.Sprintf("Restore platform setup from %s? This replaces the platform database and configuration.",
			filepath.Base(snapDir)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	status, err := o.Docker.Status(ctx, runner.SetupContainer)
	if err != nil {
		return err
	}
	if status != dockerx.StatusRunning {
		return fmt.Errorf("container %s is %s, cannot restore platform database", runner.SetupContainer, status)
	}

	if !o.Cfg.SkipPreRestoreBackup && o.SetupBackup != nil {
		fmt.Println("Taking a fresh setup snapshot before restore...")
		if err := o.SetupBackup(ctx); err != nil {
			return fmt.Errorf("pre-restore setup snapshot failed, aborting: %w", err)
		}
	}

	user, password, db := runner.SetupCredentials(o.Cfg.CoolifyRoot)

	fmt.Printf("Recreating platform database %s...\n", db)
	env := []string{"PGPASSWORD=" + password}
	drop := fmt.Sprintf("DROP DATABASE IF EXISTS %q WITH (FORCE)", db)
	create := fmt.Sprintf("CREATE DATABASE %q OWNER %q", db, user)
	for _, stmt := range []string{drop, create} {
		if err := o.Docker.Output(ctx, runner.SetupContainer, env, os.Stdout,
			"psql", "-U", user, "-d", "postgres", "-c", stmt); err != nil {
			return fmt.Errorf("failed to recreate platform database: %w", err)
		}
	}

	r, closeDump, err := archive.OpenZst(dumpPath)
	if err != nil {
		return err
	}
	err = o.Docker.Input(ctx, runner.SetupContainer, env, r,
		"psql", "-U", user, "-d", db, "-v", "ON_ERROR_STOP=1")
	closeDump()
	if err != nil {
		return fmt.Errorf("failed to restore platform database: %w", err)
	}

	fmt.Printf("Overlaying platform data onto %s...\n", o.Cfg.CoolifyRoot)
	if err := archive.Extract(archivePath, o.Cfg.CoolifyRoot); err != nil {
		return fmt.Errorf("failed to restore platform data: %w", err)
	}

	// Best-effort restart of the platform itself so it reloads state.
	for _, name := range []string{"coolify", runner.SetupContainer} {
		status, err := o.Docker.Status(ctx, name)
		if err != nil || status != dockerx.StatusRunning {
			continue
		}
		fmt.Printf("Restarting container %s...\n", name)
		if err := o.Docker.Restart(ctx, name); err != nil {
			fmt.Printf("Warning: failed to restart %s: %v\n", name, err)
		}
	}

	fmt.Printf("Platform setup restore from %s complete.\n", filepath.Base(snapDir))
	return nil
}

// selectSetupSnapshot picks a setup snapshot directory, newest first.
func (o *Orchestrator) selectSetupSnapshot(opts Options) (string, error) {
	root := o.Cfg.SetupBackupDir()
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("no setup snapshots under %s: %w", root, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(snapshot.TimestampLayout, e.Name()); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no setup snapshots under %s", root)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if opts.Latest || opts.Yes {
		return filepath.Join(root, names[0]), nil
	}
	chosen, err := o.selectFn("Select a setup snapshot:", names)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, chosen), nil
}
