package dockerx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coolify-backup/internal/manifest"
)

// ErrNoContainerMatched means no resolution tier produced a container name
// for any candidate role.
var ErrNoContainerMatched = errors.New("no container matched")

// NotRunningError means containers were resolved but none of them is
// currently running; it carries the attempted names for diagnostics.
type NotRunningError struct {
	Attempted []string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("no running container among candidates: %s", strings.Join(e.Attempted, ", "))
}

// AttemptedNames lets reporting distinguish "matched but stopped" from
// "nothing matched at all".
func (e *NotRunningError) AttemptedNames() []string { return e.Attempted }

// ResolveContainer determines the concrete container for a manifest role
// using layered heuristics, most reliable first:
//
//  1. a running container named <role>-<project>-* (actual runtime state)
//  2. a running container whose name contains role then project, loosely
//  3. an explicit container_name override in the manifest
//  4. the conventional <project>-<role>-1 compose default, unverified
//
// Best-effort: an empty result means even the conventional name could not
// be constructed.
func ResolveContainer(ctx context.Context, c Client, manifestText, project, role string) (string, error) {
	running, err := c.Running(ctx)
	if err != nil {
		return "", err
	}

	prefix := role + "-" + project
	for _, name := range running {
		if strings.HasPrefix(name, prefix) {
			return name, nil
		}
	}

	for _, name := range running {
		if idx := strings.Index(name, role); idx >= 0 {
			if strings.Contains(name[idx+len(role):], project) {
				return name, nil
			}
		}
	}

	if override := manifest.ContainerNameFor(manifestText, role); override != "" {
		return override, nil
	}

	if project == "" || role == "" {
		return "", nil
	}
	return fmt.Sprintf("%s-%s-1", project, role), nil
}

// FindRunningContainer tries candidate role names in priority order and
// returns the first whose resolved container is confirmed running. On
// failure it returns ErrNoContainerMatched, or a *NotRunningError listing
// every resolved-but-not-running name.
func FindRunningContainer(ctx context.Context, c Client, manifestText, project string, roles ...string) (string, error) {
	var attempted []string
	for _, role := range roles {
		name, err := ResolveContainer(ctx, c, manifestText, project, role)
		if err != nil {
			return "", err
		}
		if name == "" {
			continue
		}
		status, err := c.Status(ctx, name)
		if err != nil {
			return "", err
		}
		if status == StatusRunning {
			return name, nil
		}
		attempted = append(attempted, fmt.Sprintf("%s (%s)", name, status))
	}
	if len(attempted) > 0 {
		return "", &NotRunningError{Attempted: attempted}
	}
	return "", ErrNoContainerMatched
}

// ImageMatches reports whether a container's declared image contains any of
// the expected engine keywords. It is the defense-in-depth gate before an
// engine-specific dump command runs against a container that only matched
// naming heuristics.
func ImageMatches(ctx context.Context, c Client, name string, keywords ...string) (bool, error) {
	image, err := c.Image(ctx, name)
	if err != nil {
		return false, err
	}
	image = strings.ToLower(image)
	for _, kw := range keywords {
		if strings.Contains(image, kw) {
			return true, nil
		}
	}
	return false, nil
}
