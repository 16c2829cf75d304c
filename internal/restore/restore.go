// Package restore drives the restore state machine:
//
//	SELECT-TARGET -> SELECT-SNAPSHOT -> VALIDATE -> CONFIRM ->
//	PRE-RESTORE-SNAPSHOT -> APPLY -> RESTART-CONTAINER -> DONE
//
// Dry-run short-circuits after VALIDATE. Every payload must pass the
// compression format's integrity check before any destructive action; the
// pre-restore safety snapshot reuses the backup executors scoped to the one
// instance being restored.
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"coolify-backup/internal/archive"
	"coolify-backup/internal/config"
	"coolify-backup/internal/dockerx"
	"coolify-backup/internal/envfile"
	"coolify-backup/internal/instance"
	"coolify-backup/internal/manifest"
	"coolify-backup/internal/remote"
	"coolify-backup/internal/snapshot"
	"coolify-backup/internal/strategy"
)

// Options controls one restore operation.
type Options struct {
	// ID selects the instance whose snapshot is restored; empty means
	// interactive selection.
	ID string
	// Target redirects the restore into a different instance (migration).
	Target string
	// DryRun prints the intended actions after validation and stops.
	DryRun bool
	// Yes skips the confirmation prompt (non-interactive mode).
	Yes bool
	// Latest picks the newest snapshot without prompting.
	Latest bool
	// FetchRemote pulls the instance's snapshots from remote storage first.
	FetchRemote bool
	// Setup restores a platform setup snapshot instead of an instance.
	Setup bool
}

// Orchestrator executes restore operations.
type Orchestrator struct {
	Cfg    *config.Config
	Docker dockerx.Client
	Syncer remote.Syncer

	// SetupBackup, when set, takes a fresh platform setup snapshot before a
	// setup restore overwrites the platform state.
	SetupBackup func(ctx context.Context) error

	now       func() time.Time
	selectFn  func(message string, options []string) (string, error)
	confirmFn func(message string) (bool, error)
}

// New wires an Orchestrator with interactive survey prompts.
func New(cfg *config.Config, docker dockerx.Client, syncer remote.Syncer) *Orchestrator {
	return &Orchestrator{
		Cfg:       cfg,
		Docker:    docker,
		Syncer:    syncer,
		now:       time.Now,
		selectFn:  askSelect,
		confirmFn: askConfirm,
	}
}

// Run executes one restore operation through the state machine.
func (o *Orchestrator) Run(ctx context.Context, opts Options) error {
	if opts.Setup {
		return o.runSetup(ctx, opts)
	}

	id, nsRoot, err := o.selectTarget(ctx, opts)
	if err != nil {
		return err
	}

	snapDir, err := o.selectSnapshot(nsRoot, id, opts)
	if err != nil {
		return err
	}

	payloads, err := validateSnapshot(snapDir)
	if err != nil {
		return err
	}

	targetID := id
	if opts.Target != "" {
		targetID = opts.Target
	}
	target, err := o.loadTarget(targetID)
	if err != nil {
		return err
	}

	kinds, err := o.restoreKinds(ctx, target, snapDir)
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		return fmt.Errorf("snapshot %s has no payloads applicable to %s", snapDir, targetID)
	}

	if opts.DryRun {
		printPlan(snapDir, targetID, kinds, payloads)
		return nil
	}

	if !opts.Yes {
		ok, err := o.confirmFn(fmt.Sprintf("Restore snapshot %s into %s? This overwrites live data.",
			filepath.Base(snapDir), targetID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	if !o.Cfg.SkipPreRestoreBackup {
		if err := o.preRestoreSnapshot(ctx, target, kinds); err != nil {
			return fmt.Errorf("pre-restore snapshot failed, aborting restore: %w", err)
		}
	}

	for _, k := range orderedKinds(kinds) {
		fmt.Printf("Applying %s restore...\n", k)
		if err := strategy.ForKind(k).Apply(ctx, target, snapDir); err != nil {
			return fmt.Errorf("%s restore failed: %w", k, err)
		}
	}

	// Best-effort: a failed restart does not retroactively fail an
	// already-applied restore.
	o.restartContainers(ctx, target)

	fmt.Printf("Restore of %s into %s complete.\n", filepath.Base(snapDir), targetID)
	return nil
}

// selectTarget resolves which instance's snapshots to restore from and the
// namespace snapshot root holding them.
func (o *Orchestrator) selectTarget(ctx context.Context, opts Options) (string, string, error) {
	id := opts.ID
	if id == "" {
		candidates, err := o.snapshotInstances()
		if err != nil {
			return "", "", err
		}
		if len(candidates) == 0 {
			return "", "", fmt.Errorf("no snapshots found under %s", o.Cfg.BackupRoot)
		}
		id, err = o.selectFn("Select an instance to restore:", candidates)
		if err != nil {
			return "", "", err
		}
	}

	if opts.FetchRemote {
		if err := o.fetchRemote(ctx, id); err != nil {
			return "", "", err
		}
	}

	for _, root := range []string{o.Cfg.ServicesBackupDir(), o.Cfg.AppsBackupDir()} {
		if info, err := os.Stat(filepath.Join(root, id)); err == nil && info.IsDir() {
			return id, root, nil
		}
	}
	return "", "", fmt.Errorf("no snapshots found for instance %s", id)
}

func (o *Orchestrator) selectSnapshot(nsRoot, id string, opts Options) (string, error) {
	snaps, err := snapshot.List(nsRoot, id)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", fmt.Errorf("instance %s has no snapshots", id)
	}
	if opts.Latest {
		return snaps[0], nil
	}

	names := make([]string, len(snaps))
	for i, s := range snaps {
		names[i] = filepath.Base(s)
	}
	chosen, err := o.selectFn("Select a snapshot:", names)
	if err != nil {
		return "", err
	}
	return filepath.Join(nsRoot, id, chosen), nil
}

// validateSnapshot checks every compressed payload's integrity. Corruption
// anywhere fails the whole restore before any destructive action.
func validateSnapshot(snapDir string) ([]string, error) {
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", snapDir, err)
	}
	var payloads []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zst") {
			continue
		}
		path := filepath.Join(snapDir, e.Name())
		if err := archive.Verify(path); err != nil {
			return nil, fmt.Errorf("snapshot validation failed: %w", err)
		}
		payloads = append(payloads, e.Name())
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("snapshot %s contains no payloads", snapDir)
	}
	fmt.Printf("Validated %d payloads in %s\n", len(payloads), snapDir)
	return payloads, nil
}

// restoreKinds determines which strategies the snapshot requires, from its
// metadata when present, otherwise inferred from payload names and the live
// container's engine image.
func (o *Orchestrator) restoreKinds(ctx context.Context, target *strategy.Target, snapDir string) ([]strategy.Kind, error) {
	if meta, ok, err := snapshot.ReadMeta(snapDir); err != nil {
		return nil, err
	} else if ok {
		var kinds []strategy.Kind
		for _, tag := range meta.Strategies {
			k, err := strategy.ParseKind(tag)
			if err != nil {
				return nil, fmt.Errorf("snapshot metadata: %w", err)
			}
			kinds = append(kinds, k)
		}
		return kinds, nil
	}

	// Pre-metadata snapshot: infer from payload shapes.
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		return nil, err
	}
	var hasSQL, hasSQLite, hasFiles bool
	for _, e := range entries {
		name := e.Name()
		switch {
		case name == strategy.SQLiteArchiveName:
			hasSQLite = true
		case strings.HasSuffix(name, ".sql.zst"):
			hasSQL = true
		case strings.HasSuffix(name, ".tar.zst"):
			hasFiles = true
		}
	}

	var kinds []strategy.Kind
	if hasSQL {
		// Decide the relational family from the live container's image.
		if ok, err := (strategy.MySQL{}).Probe(ctx, target); err != nil {
			return nil, err
		} else if ok {
			kinds = append(kinds, strategy.KindMySQL)
		} else if ok, err := (strategy.Postgres{}).Probe(ctx, target); err != nil {
			return nil, err
		} else if ok {
			kinds = append(kinds, strategy.KindPostgres)
		} else {
			return nil, fmt.Errorf("snapshot has SQL dumps but no running relational container for %s", target.Ref.ID)
		}
	}
	if hasSQLite {
		kinds = append(kinds, strategy.KindSQLite)
	}
	if hasFiles {
		kinds = append(kinds, strategy.KindFiles)
	}
	return kinds, nil
}

// preRestoreSnapshot captures the current state of the target with the same
// executors, scoped to the kinds about to be overwritten.
func (o *Orchestrator) preRestoreSnapshot(ctx context.Context, target *strategy.Target, kinds []strategy.Kind) error {
	dir, err := snapshot.Dir(o.Cfg.PreRestoreDir(), target.Ref.ID, o.now())
	if err != nil {
		return err
	}
	fmt.Printf("Creating pre-restore safety snapshot in %s...\n", dir)

	wrote := false
	for _, k := range orderedKinds(kinds) {
		res := strategy.ForKind(k).Execute(ctx, target, dir)
		if res.Failed() {
			return fmt.Errorf("%s pre-restore backup failed: %s", k, joinErrors(res.Errs))
		}
		if len(res.Payloads) > 0 {
			wrote = true
		}
	}
	if !wrote {
		// A target with no current data still proceeds; there is nothing to
		// protect.
		os.RemoveAll(dir)
		fmt.Println("Target has no current data to snapshot, continuing.")
		return nil
	}

	meta := snapshot.Meta{
		Instance:  target.Ref.ID,
		Namespace: string(target.Ref.Namespace),
		Timestamp: o.now(),
	}
	for _, k := range kinds {
		meta.Strategies = append(meta.Strategies, k.String())
	}
	if err := snapshot.WriteMeta(dir, meta); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
	return nil
}

func (o *Orchestrator) restartContainers(ctx context.Context, target *strategy.Target) {
	for _, role := range target.Manifest.Order {
		name, err := dockerx.ResolveContainer(ctx, o.Docker, target.ManifestText, target.Ref.Project(), role)
		if err != nil || name == "" {
			continue
		}
		status, err := o.Docker.Status(ctx, name)
		if err != nil || status == dockerx.StatusAbsent {
			continue
		}
		fmt.Printf("Restarting container %s...\n", name)
		if err := o.Docker.Restart(ctx, name); err != nil {
			fmt.Printf("Warning: failed to restart %s: %v\n", name, err)
		}
	}
}

func (o *Orchestrator) loadTarget(id string) (*strategy.Target, error) {
	locator := instance.Locator{ServicesRoot: o.Cfg.ServicesRoot, AppsRoot: o.Cfg.AppsRoot}
	ref, err := locator.Locate(id)
	if err != nil {
		return nil, err
	}
	text, err := os.ReadFile(ref.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("no manifest for %s: %w", id, err)
	}
	env, err := envfile.Read(ref.EnvPath())
	if err != nil {
		return nil, err
	}
	return &strategy.Target{
		Ref:          ref,
		Env:          env,
		ManifestText: string(text),
		Manifest:     manifest.Parse(string(text)),
		Docker:       o.Docker,
	}, nil
}

// snapshotInstances lists every instance that has at least one snapshot,
// services first.
func (o *Orchestrator) snapshotInstances() ([]string, error) {
	var ids []string
	seen := map[string]bool{}
	for _, root := range []string{o.Cfg.ServicesBackupDir(), o.Cfg.AppsBackupDir()} {
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() && !seen[e.Name()] {
				names = append(names, e.Name())
				seen[e.Name()] = true
			}
		}
		sort.Strings(names)
		ids = append(ids, names...)
	}
	return ids, nil
}

func (o *Orchestrator) fetchRemote(ctx context.Context, id string) error {
	if o.Syncer == nil {
		return fmt.Errorf("--fetch-remote requires a configured remote backend")
	}
	fmt.Printf("Fetching remote snapshots for %s...\n", id)
	var lastErr error
	for _, ns := range []string{"services", "apps"} {
		prefix := ns + "/" + id
		if err := o.Syncer.Fetch(ctx, prefix, o.Cfg.BackupRoot); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("failed to fetch remote snapshots for %s: %w", id, lastErr)
}

func printPlan(snapDir, targetID string, kinds []strategy.Kind, payloads []string) {
	fmt.Println("[DRY RUN] Restore plan:")
	fmt.Printf("[DRY RUN]   snapshot: %s\n", snapDir)
	fmt.Printf("[DRY RUN]   target instance: %s\n", targetID)
	for _, k := range orderedKinds(kinds) {
		fmt.Printf("[DRY RUN]   would apply %s restore\n", k)
	}
	for _, p := range payloads {
		fmt.Printf("[DRY RUN]   payload: %s\n", p)
	}
	fmt.Println("[DRY RUN] No changes made.")
}

// orderedKinds sorts kinds into the fixed strategy priority.
func orderedKinds(kinds []strategy.Kind) []strategy.Kind {
	out := append([]strategy.Kind{}, kinds...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func askSelect(message string, options []string) (string, error) {
	var selection string
	prompt := &survey.Select{Message: message, Options: options, PageSize: 15}
	if err := survey.AskOne(prompt, &selection); err != nil {
		return "", fmt.Errorf("selection aborted: %w", err)
	}
	return selection, nil
}

func askConfirm(message string) (bool, error) {
	ok := false
	prompt := &survey.Confirm{Message: message, Default: false}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, fmt.Errorf("confirmation aborted: %w", err)
	}
	return ok, nil
}
