package instance

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func mkInstance(t *testing.T, root, id string, withManifest bool) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if withManifest {
		if err := os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte("services:\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLocateServicesBeforeApps(t *testing.T) {
	services := t.TempDir()
	apps := t.TempDir()
	mkInstance(t, services, "x4kw0s", true)
	mkInstance(t, apps, "x4kw0s", true)

	ref, err := Locator{ServicesRoot: services, AppsRoot: apps}.Locate("x4kw0s")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ref.Namespace != NamespaceService {
		t.Errorf("namespace = %s, want services to win", ref.Namespace)
	}
	if ref.BasePath != filepath.Join(services, "x4kw0s") {
		t.Errorf("base path = %s", ref.BasePath)
	}
}

func TestLocateAppsFallback(t *testing.T) {
	services := t.TempDir()
	apps := t.TempDir()
	mkInstance(t, apps, "blog", true)

	ref, err := Locator{ServicesRoot: services, AppsRoot: apps}.Locate("blog")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if ref.Namespace != NamespaceApplication {
		t.Errorf("namespace = %s, want apps", ref.Namespace)
	}
}

func TestLocateNotFound(t *testing.T) {
	_, err := Locator{ServicesRoot: t.TempDir(), AppsRoot: t.TempDir()}.Locate("ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDiscoverRequiresManifest(t *testing.T) {
	services := t.TempDir()
	apps := t.TempDir()
	mkInstance(t, services, "beta", true)
	mkInstance(t, services, "alpha", true)
	mkInstance(t, services, "empty", false)
	mkInstance(t, apps, "zapp", true)

	refs, err := Locator{ServicesRoot: services, AppsRoot: apps}.Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	var ids []string
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	want := []string{"alpha", "beta", "zapp"}
	if len(ids) != len(want) {
		t.Fatalf("Discover = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Discover order = %v, want %v", ids, want)
			break
		}
	}
}

func TestRefPaths(t *testing.T) {
	ref := Ref{ID: "wiki", Namespace: NamespaceService, BasePath: "/data/coolify/services/wiki"}
	if ref.ManifestPath() != "/data/coolify/services/wiki/docker-compose.yml" {
		t.Errorf("ManifestPath = %s", ref.ManifestPath())
	}
	if ref.EnvPath() != "/data/coolify/services/wiki/.env" {
		t.Errorf("EnvPath = %s", ref.EnvPath())
	}
	if ref.Project() != "wiki" {
		t.Errorf("Project = %s", ref.Project())
	}
}
