package dockerx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const resolverManifest = `services:
  app:
    image: ghcr.io/example/app
  db:
    image: mariadb:11
    container_name: legacy-database
`

func TestResolveContainerRuntimePrefix(t *testing.T) {
	fake := &Fake{Containers: map[string]Status{
		"db-x4kw0s-101530": StatusRunning,
		"unrelated":        StatusRunning,
	}}

	name, err := ResolveContainer(context.Background(), fake, resolverManifest, "x4kw0s", "db")
	if err != nil {
		t.Fatalf("ResolveContainer: %v", err)
	}
	if name != "db-x4kw0s-101530" {
		t.Errorf("resolved %q, want runtime prefix match", name)
	}
}

func TestResolveContainerLooseMatch(t *testing.T) {
	fake := &Fake{Containers: map[string]Status{
		"wiki-db-x4kw0s": StatusRunning,
	}}

	name, err := ResolveContainer(context.Background(), fake, resolverManifest, "x4kw0s", "db")
	if err != nil {
		t.Fatalf("ResolveContainer: %v", err)
	}
	if name != "wiki-db-x4kw0s" {
		t.Errorf("resolved %q, want loose match", name)
	}
}

func TestResolveContainerManifestOverride(t *testing.T) {
	fake := &Fake{Containers: map[string]Status{}}

	name, err := ResolveContainer(context.Background(), fake, resolverManifest, "x4kw0s", "db")
	if err != nil {
		t.Fatalf("ResolveContainer: %v", err)
	}
	if name != "legacy-database" {
		t.Errorf("resolved %q, want manifest container_name", name)
	}
}

func TestResolveContainerComposeDefault(t *testing.T) {
	fake := &Fake{Containers: map[string]Status{}}

	name, err := ResolveContainer(context.Background(), fake, resolverManifest, "x4kw0s", "app")
	if err != nil {
		t.Fatalf("ResolveContainer: %v", err)
	}
	if name != "x4kw0s-app-1" {
		t.Errorf("resolved %q, want compose default", name)
	}
}

func TestFindRunningContainerRolePriority(t *testing.T) {
	fake := &Fake{Containers: map[string]Status{
		"mysql-x4kw0s": StatusRunning,
	}}

	name, err := FindRunningContainer(context.Background(), fake, resolverManifest, "x4kw0s", "db", "mysql", "mariadb")
	if err != nil {
		t.Fatalf("FindRunningContainer: %v", err)
	}
	// The db role resolves to the stopped manifest override; the mysql role
	// is the first confirmed running.
	if name != "mysql-x4kw0s" {
		t.Errorf("found %q", name)
	}
}

func TestFindRunningContainerNotRunning(t *testing.T) {
	fake := &Fake{Containers: map[string]Status{
		"legacy-database": StatusStopped,
	}}

	_, err := FindRunningContainer(context.Background(), fake, resolverManifest, "x4kw0s", "db")
	var nre *NotRunningError
	if !errors.As(err, &nre) {
		t.Fatalf("err = %v, want NotRunningError", err)
	}
	if len(nre.AttemptedNames()) == 0 || !strings.Contains(nre.AttemptedNames()[0], "stopped") {
		t.Errorf("attempted = %v, want names with status", nre.AttemptedNames())
	}
}

func TestFindRunningContainerNothingMatched(t *testing.T) {
	fake := &Fake{Containers: map[string]Status{}}

	_, err := FindRunningContainer(context.Background(), fake, "", "", "db")
	if !errors.Is(err, ErrNoContainerMatched) {
		t.Fatalf("err = %v, want ErrNoContainerMatched", err)
	}
}

func TestImageMatches(t *testing.T) {
	fake := &Fake{Images: map[string]string{
		"db": "docker.io/library/MariaDB:11.4",
	}}

	ok, err := ImageMatches(context.Background(), fake, "db", "mysql", "mariadb")
	if err != nil || !ok {
		t.Errorf("ImageMatches = %v, %v; want true", ok, err)
	}

	ok, err = ImageMatches(context.Background(), fake, "db", "postgres")
	if err != nil || ok {
		t.Errorf("ImageMatches(postgres) = %v, %v; want false", ok, err)
	}
}
