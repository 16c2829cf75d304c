// Package strategy implements the four backup strategies and their
// applicability probes. Strategies form a closed set; adding one means
// extending Kind, Ordered and ForKind together, which every exhaustive
// switch in the tree then enforces.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coolify-backup/internal/dockerx"
	"coolify-backup/internal/instance"
	"coolify-backup/internal/manifest"
)

// Kind tags one of the four backup strategies.
type Kind int

const (
	KindMySQL Kind = iota
	KindPostgres
	KindSQLite
	KindFiles
)

func (k Kind) String() string {
	switch k {
	case KindMySQL:
		return "mysql"
	case KindPostgres:
		return "postgres"
	case KindSQLite:
		return "sqlite"
	case KindFiles:
		return "files"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a stored strategy tag back to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql":
		return KindMySQL, nil
	case "postgres":
		return KindPostgres, nil
	case "sqlite":
		return KindSQLite, nil
	case "files":
		return KindFiles, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q", s)
	}
}

// Target bundles everything an executor needs about one instance. The
// manifest is parsed fresh per operation; manifests change between runs.
type Target struct {
	Ref          instance.Ref
	Env          map[string]string
	ManifestText string
	Manifest     *manifest.ServiceMap
	Docker       dockerx.Client
	// DatabaseOverride is the operator's explicit database list, unioned
	// into name resolution by the relational strategies.
	DatabaseOverride []string
}

// Result is the outcome of one strategy execution. Per-item failures
// accumulate in Errs while sibling items continue; Payloads lists the
// snapshot files actually written.
type Result struct {
	Payloads []string
	Errs     []error
}

func (r *Result) ok() bool { return len(r.Payloads) > 0 }

// Failed reports whether the strategy produced nothing useful. Partial
// success is not failure.
func (r *Result) Failed() bool { return !r.ok() && len(r.Errs) > 0 }

// Strategy is one member of the closed strategy set.
type Strategy interface {
	Kind() Kind
	// Probe reports applicability without side effects. Non-applicability
	// is a normal outcome, not an error; only engine-communication faults
	// surface as errors.
	Probe(ctx context.Context, t *Target) (bool, error)
	// Execute extracts the instance's data of this type into outDir.
	Execute(ctx context.Context, t *Target, outDir string) Result
	// Apply restores this type's payloads from snapDir into the live
	// target. It assumes payloads already passed validation.
	Apply(ctx context.Context, t *Target, snapDir string) error
}

// Ordered returns the strategies in their fixed attempt priority. The order
// matters: an instance can spuriously match several probes, and the first
// successful strategy owns side effects that must not repeat.
func Ordered() []Strategy {
	return []Strategy{MySQL{}, Postgres{}, SQLite{}, Files{}}
}

// ForKind returns the strategy for a tag. The switch is exhaustive over the
// closed set.
func ForKind(k Kind) Strategy {
	switch k {
	case KindMySQL:
		return MySQL{}
	case KindPostgres:
		return Postgres{}
	case KindSQLite:
		return SQLite{}
	case KindFiles:
		return Files{}
	}
	panic(fmt.Sprintf("strategy: no implementation for %v", k))
}

// findRunning resolves the first running container among candidate roles;
// probe negatives (nothing matched, or matched but stopped) come back as
// ("", nil, false) while genuine engine faults are returned as errors.
func findRunning(ctx context.Context, t *Target, roles ...string) (string, bool, error) {
	name, err := dockerx.FindRunningContainer(ctx, t.Docker, t.ManifestText, t.Ref.Project(), roles...)
	if err != nil {
		var nre *dockerx.NotRunningError
		if errors.Is(err, dockerx.ErrNoContainerMatched) || errors.As(err, &nre) {
			return "", false, nil
		}
		return "", false, err
	}
	return name, true, nil
}

func imageMatches(ctx context.Context, t *Target, name string, keywords ...string) (bool, error) {
	return dockerx.ImageMatches(ctx, t.Docker, name, keywords...)
}
