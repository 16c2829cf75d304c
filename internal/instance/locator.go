// Package instance maps opaque instance identifiers to their on-disk
// directories. Instances live in exactly one of two namespaces; their
// lifecycle is owned by the platform, this package only observes.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Namespace is one of the two parallel instance namespaces.
type Namespace string

const (
	NamespaceService     Namespace = "services"
	NamespaceApplication Namespace = "apps"
)

// ErrNotFound is returned when an identifier exists in neither namespace.
var ErrNotFound = errors.New("instance not found")

// Ref is a located instance.
type Ref struct {
	ID        string
	Namespace Namespace
	// BasePath is the instance directory holding the manifest and env file.
	BasePath string
}

// ManifestPath returns the path of the instance's compose manifest.
func (r Ref) ManifestPath() string {
	return filepath.Join(r.BasePath, "docker-compose.yml")
}

// EnvPath returns the path of the instance's env file.
func (r Ref) EnvPath() string {
	return filepath.Join(r.BasePath, ".env")
}

// Project returns the compose project token derived from the instance
// directory basename, used by container name resolution.
func (r Ref) Project() string {
	return filepath.Base(r.BasePath)
}

// Locator resolves identifiers against the two namespace roots.
type Locator struct {
	ServicesRoot string
	AppsRoot     string
}

// Locate maps an identifier to its namespace and base path. The service
// namespace is checked first; directories are mutually exclusive in
// practice (enforced by the platform), so first match wins.
func (l Locator) Locate(id string) (Ref, error) {
	candidates := []struct {
		ns   Namespace
		root string
	}{
		{NamespaceService, l.ServicesRoot},
		{NamespaceApplication, l.AppsRoot},
	}
	for _, c := range candidates {
		path := filepath.Join(c.root, id)
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			return Ref{ID: id, Namespace: c.ns, BasePath: path}, nil
		}
	}
	return Ref{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Discover lists every instance that exists on disk and carries a compose
// manifest, services first, each namespace in lexical order.
func (l Locator) Discover() ([]Ref, error) {
	var refs []Ref
	roots := []struct {
		ns   Namespace
		root string
	}{
		{NamespaceService, l.ServicesRoot},
		{NamespaceApplication, l.AppsRoot},
	}
	for _, r := range roots {
		entries, err := os.ReadDir(r.root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", r.root, err)
		}
		var ids []string
		for _, e := range entries {
			if e.IsDir() {
				ids = append(ids, e.Name())
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			ref := Ref{ID: id, Namespace: r.ns, BasePath: filepath.Join(r.root, id)}
			if _, err := os.Stat(ref.ManifestPath()); err != nil {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}
