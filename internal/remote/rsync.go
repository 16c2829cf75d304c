package remote

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RsyncSyncer mirrors the backup tree to a local path or remote
// user@host:path target via an rsync subprocess.
type RsyncSyncer struct {
	Target string
}

func (s *RsyncSyncer) Sync(ctx context.Context, localRoot string) error {
	src := strings.TrimRight(localRoot, "/") + "/"
	return s.run(ctx, src, s.Target)
}

func (s *RsyncSyncer) Fetch(ctx context.Context, prefix, localRoot string) error {
	src := strings.TrimRight(s.Target, "/") + "/" + strings.Trim(prefix, "/") + "/"
	dest := strings.TrimRight(localRoot, "/") + "/" + strings.Trim(prefix, "/")
	return s.run(ctx, src, dest)
}

func (s *RsyncSyncer) Test(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "rsync", "--list-only", s.Target)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rsync target %s is not reachable: %w (stderr: %s)", s.Target, err, stderr.String())
	}
	return nil
}

func (s *RsyncSyncer) run(ctx context.Context, src, dest string) error {
	cmd := exec.CommandContext(ctx, "rsync", "-a", "--delete", src, dest)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("rsync to %s failed: %w (stderr: %s)", dest, err, stderr.String())
	}
	return nil
}
