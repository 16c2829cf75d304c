package dockerx

import (
	"context"
	"fmt"
	"io"
	"sort"
)

// Fake is an in-memory Client for tests. Containers maps names to their
// status; the hook functions script exec and copy behavior per test.
type Fake struct {
	Containers map[string]Status
	Images     map[string]string

	OutputFunc   func(name string, env []string, w io.Writer, args ...string) error
	InputFunc    func(name string, env []string, r io.Reader, args ...string) error
	CopyFromFunc func(name, src, destDir string) error
	CopyToFunc   func(name, src, dest string) error

	Restarted []string
}

var _ Client = (*Fake)(nil)

func (f *Fake) Running(ctx context.Context) ([]string, error) {
	var names []string
	for name, status := range f.Containers {
		if status == StatusRunning {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *Fake) Status(ctx context.Context, name string) (Status, error) {
	status, ok := f.Containers[name]
	if !ok {
		return StatusAbsent, nil
	}
	return status, nil
}

func (f *Fake) Image(ctx context.Context, name string) (string, error) {
	img, ok := f.Images[name]
	if !ok {
		return "", fmt.Errorf("no such container: %s", name)
	}
	return img, nil
}

func (f *Fake) Output(ctx context.Context, name string, env []string, w io.Writer, args ...string) error {
	if f.OutputFunc == nil {
		return nil
	}
	return f.OutputFunc(name, env, w, args...)
}

func (f *Fake) Input(ctx context.Context, name string, env []string, r io.Reader, args ...string) error {
	if f.InputFunc == nil {
		return nil
	}
	return f.InputFunc(name, env, r, args...)
}

func (f *Fake) CopyFrom(ctx context.Context, name, src, destDir string) error {
	if f.CopyFromFunc == nil {
		return nil
	}
	return f.CopyFromFunc(name, src, destDir)
}

func (f *Fake) CopyTo(ctx context.Context, name, src, dest string) error {
	if f.CopyToFunc == nil {
		return nil
	}
	return f.CopyToFunc(name, src, dest)
}

func (f *Fake) Restart(ctx context.Context, name string) error {
	f.Restarted = append(f.Restarted, name)
	return nil
}
