// Package runner drives one backup run end to end: instance discovery,
// strategy probing and execution, retention pruning and the remote-sync
// handoff. Execution is strictly sequential; the only ordering guarantees
// are discovery order across instances and fixed strategy priority within
// one instance.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coolify-backup/internal/config"
	"coolify-backup/internal/dockerx"
	"coolify-backup/internal/envfile"
	"coolify-backup/internal/instance"
	"coolify-backup/internal/manifest"
	"coolify-backup/internal/notify"
	"coolify-backup/internal/remote"
	"coolify-backup/internal/snapshot"
	"coolify-backup/internal/strategy"
)

// Summary aggregates the per-instance outcomes of one run.
type Summary struct {
	Succeeded int
	Failed    int
	Details   []string
	Duration  time.Duration
}

// Outcome maps the tally onto the notification coloring.
func (s *Summary) Outcome() notify.Outcome {
	switch {
	case s.Failed == 0:
		return notify.OutcomeSuccess
	case s.Succeeded > 0:
		return notify.OutcomePartial
	default:
		return notify.OutcomeFail
	}
}

// Runner executes backup runs.
type Runner struct {
	Cfg      *config.Config
	Docker   dockerx.Client
	Notifier notify.Notifier
	Syncer   remote.Syncer

	// now is overridable for tests.
	now func() time.Time
}

// New wires a Runner from its collaborators. A nil notifier defaults to the
// no-op sink.
func New(cfg *config.Config, docker dockerx.Client, notifier notify.Notifier, syncer remote.Syncer) *Runner {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Runner{Cfg: cfg, Docker: docker, Notifier: notifier, Syncer: syncer, now: time.Now}
}

// Run performs one backup run. With no ids, every discovered instance is
// processed with all strategies; with ids the run is scoped to them; with
// filesOnly only the bulk-volume strategy executes, without probing.
// Failures accumulate into the summary instead of aborting sibling work.
func (r *Runner) Run(ctx context.Context, ids []string, filesOnly bool) *Summary {
	start := r.now()
	r.Notifier.Heartbeat(ctx, notify.PhaseStart)

	summary := &Summary{}
	locator := instance.Locator{ServicesRoot: r.Cfg.ServicesRoot, AppsRoot: r.Cfg.AppsRoot}

	refs := r.resolveInstances(locator, ids, summary)
	for _, ref := range refs {
		r.backupInstance(ctx, ref, filesOnly, summary)
	}

	r.applyRetention()
	r.syncRemote(ctx, summary)

	summary.Duration = r.now().Sub(start)
	r.Notifier.Notify(ctx, notify.Event{
		Outcome:   summary.Outcome(),
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Details:   summary.Details,
		Duration:  summary.Duration,
	})
	if summary.Outcome() == notify.OutcomeFail {
		r.Notifier.Heartbeat(ctx, notify.PhaseFail)
	} else {
		r.Notifier.Heartbeat(ctx, notify.PhaseSuccess)
	}
	return summary
}

func (r *Runner) resolveInstances(locator instance.Locator, ids []string, summary *Summary) []instance.Ref {
	if len(ids) == 0 {
		refs, err := locator.Discover()
		if err != nil {
			summary.Failed++
			summary.Details = append(summary.Details, fmt.Sprintf("discovery failed: %v", err))
			return nil
		}
		return refs
	}

	var refs []instance.Ref
	for _, id := range ids {
		ref, err := locator.Locate(id)
		if err != nil {
			// Discovery errors are per-instance: log, count, continue.
			fmt.Printf("Warning: %v\n", err)
			summary.Failed++
			summary.Details = append(summary.Details, fmt.Sprintf("%s: not found", id))
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (r *Runner) backupInstance(ctx context.Context, ref instance.Ref, filesOnly bool, summary *Summary) {
	fmt.Printf("Processing instance %s (%s)...\n", ref.ID, ref.Namespace)

	target, err := r.loadTarget(ref)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
		summary.Failed++
		summary.Details = append(summary.Details, fmt.Sprintf("%s: %v", ref.ID, err))
		return
	}

	ts := r.now()
	outDir, err := snapshot.Dir(r.namespaceRoot(ref.Namespace), ref.ID, ts)
	if err != nil {
		summary.Failed++
		summary.Details = append(summary.Details, fmt.Sprintf("%s: %v", ref.ID, err))
		return
	}

	var payloads []string
	var itemErrors []error
	var executed []string
	envCopied := false

	strategies := strategy.Ordered()
	if filesOnly {
		strategies = []strategy.Strategy{strategy.Files{}}
	}
	for _, s := range strategies {
		if !filesOnly {
			applicable, err := s.Probe(ctx, target)
			if err != nil {
				itemErrors = append(itemErrors, fmt.Errorf("%s probe: %w", s.Kind(), err))
				continue
			}
			if !applicable {
				continue
			}
		}

		fmt.Printf("Running %s backup for %s...\n", s.Kind(), ref.ID)
		res := s.Execute(ctx, target, outDir)
		executed = append(executed, s.Kind().String())
		payloads = append(payloads, res.Payloads...)
		for _, e := range res.Errs {
			itemErrors = append(itemErrors, fmt.Errorf("%s: %w", s.Kind(), e))
		}

		if len(res.Payloads) > 0 && !envCopied {
			if err := copyEnvFile(ref.EnvPath(), outDir); err != nil {
				fmt.Printf("Warning: failed to copy env file for %s: %v\n", ref.ID, err)
			}
			envCopied = true
		}
	}

	if len(payloads) == 0 {
		// Nothing applicable or everything failed; an empty directory must
		// not look like a restorable snapshot.
		os.RemoveAll(outDir)
		if len(itemErrors) == 0 {
			fmt.Printf("No applicable backup strategy for %s, skipping\n", ref.ID)
			return
		}
		summary.Failed++
		summary.Details = append(summary.Details, fmt.Sprintf("%s: %s", ref.ID, joinErrors(itemErrors)))
		for _, e := range itemErrors {
			fmt.Printf("Warning: %s: %v\n", ref.ID, e)
		}
		return
	}

	meta := snapshot.Meta{
		Instance:   ref.ID,
		Namespace:  string(ref.Namespace),
		Timestamp:  ts,
		Strategies: executed,
		Payloads:   baseNames(payloads),
	}
	if err := snapshot.WriteMeta(outDir, meta); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	summary.Succeeded++
	if len(itemErrors) > 0 {
		summary.Details = append(summary.Details,
			fmt.Sprintf("%s: partial (%d payloads, errors: %s)", ref.ID, len(payloads), joinErrors(itemErrors)))
		for _, e := range itemErrors {
			fmt.Printf("Warning: %s: %v\n", ref.ID, e)
		}
	}
	fmt.Printf("Snapshot for %s complete: %d payloads\n\n", ref.ID, len(payloads))
}

// loadTarget reads the manifest and env file fresh; both can change
// between runs and are never cached.
func (r *Runner) loadTarget(ref instance.Ref) (*strategy.Target, error) {
	text, err := os.ReadFile(ref.ManifestPath())
	if err != nil {
		return nil, fmt.Errorf("no manifest for %s: %w", ref.ID, err)
	}
	env, err := envfile.Read(ref.EnvPath())
	if err != nil {
		return nil, err
	}

	var override []string
	if list, ok := envfile.FirstPresent(env, "BACKUP_DATABASES"); ok {
		for _, name := range strings.Split(list, ",") {
			if name = strings.TrimSpace(name); name != "" {
				override = append(override, name)
			}
		}
	}

	return &strategy.Target{
		Ref:              ref,
		Env:              env,
		ManifestText:     string(text),
		Manifest:         manifest.Parse(string(text)),
		Docker:           r.Docker,
		DatabaseOverride: override,
	}, nil
}

func (r *Runner) namespaceRoot(ns instance.Namespace) string {
	if ns == instance.NamespaceApplication {
		return r.Cfg.AppsBackupDir()
	}
	return r.Cfg.ServicesBackupDir()
}

// applyRetention prunes both namespaces twice: the default window sparing
// snapshots with bulk-file archives, then the longer file window without
// the carve-out.
func (r *Runner) applyRetention() {
	for _, root := range []string{r.Cfg.ServicesBackupDir(), r.Cfg.AppsBackupDir()} {
		if removed, err := snapshot.Cleanup(root, r.Cfg.RetentionDays, true); err != nil {
			fmt.Printf("Warning: retention cleanup of %s failed: %v\n", root, err)
		} else if len(removed) > 0 {
			fmt.Printf("Pruned %d expired snapshots under %s\n", len(removed), root)
		}
		if removed, err := snapshot.Cleanup(root, r.Cfg.FilesRetentionDays, false); err != nil {
			fmt.Printf("Warning: file-retention cleanup of %s failed: %v\n", root, err)
		} else if len(removed) > 0 {
			fmt.Printf("Pruned %d expired file snapshots under %s\n", len(removed), root)
		}
	}
	if removed, err := snapshot.CleanupFlat(r.Cfg.SetupBackupDir(), r.Cfg.RetentionDays); err != nil {
		fmt.Printf("Warning: retention cleanup of setup backups failed: %v\n", err)
	} else if len(removed) > 0 {
		fmt.Printf("Pruned %d expired setup snapshots\n", len(removed))
	}
}

func (r *Runner) syncRemote(ctx context.Context, summary *Summary) {
	if r.Syncer == nil {
		return
	}
	fmt.Println("Syncing backup root to remote storage...")
	if err := r.Syncer.Sync(ctx, r.Cfg.BackupRoot); err != nil {
		fmt.Printf("Warning: remote sync failed: %v\n", err)
		summary.Failed++
		summary.Details = append(summary.Details, fmt.Sprintf("remote sync: %v", err))
		return
	}
	fmt.Println("Remote sync complete")
}

func copyEnvFile(src, outDir string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(filepath.Join(outDir, snapshot.EnvBackupName), data, 0o600)
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

func joinErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
